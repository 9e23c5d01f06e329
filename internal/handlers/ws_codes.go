// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the debate handler. These give
// clients a more specific reason for closure than the standard codes.
const (
	BadSubprotocolError    = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError  = 3001 // Provided auth token was invalid or expired.
	InvalidDebateIDError   = 3002 // Target debate ID in the WS URL was malformed or unknown.
	DebateFullError        = 3003 // Debate already has its full participant set.
	InviteCodeError        = 3004 // Private debate invite code missing or wrong.
)
