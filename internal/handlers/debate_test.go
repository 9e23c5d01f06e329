// internal/handlers/debate_test.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/analysis"
	"github.com/podiumhq/podium/internal/auth"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/room"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	auth.Init()
	os.Exit(m.Run())
}

func newTestRoomStore() (*room.RoomStore, *store.MemoryStore) {
	st := store.NewMemoryStore()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	pipeline := analysis.NewPipeline(st, logger, analysis.NewHeuristicScorer())
	return room.NewRoomStore(st, pipeline, logger), st
}

func TestCreateDebate(t *testing.T) {
	rs, st := newTestRoomStore()
	handler := CreateDebateHandler(rs)

	req := httptest.NewRequest(http.MethodPost, "/debate/create",
		strings.NewReader(`{"topic":"Should remote work be the default?"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var debate models.Debate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&debate))
	assert.Equal(t, models.StatusOpen, debate.Status)
	assert.Equal(t, "Should remote work be the default?", debate.Topic)
	assert.Empty(t, debate.Participants)

	// A guest session cookie is minted for the anonymous creator.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)

	// The debate is durable, not just a live room.
	stored, err := st.LoadDebate(context.Background(), debate.ID)
	require.NoError(t, err)
	assert.Equal(t, debate.Topic, stored.Topic)
}

func TestCreateDebateRejectsBadRequests(t *testing.T) {
	rs, _ := newTestRoomStore()
	handler := CreateDebateHandler(rs)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/debate/create", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/debate/create",
		strings.NewReader(`{"topic":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDebates(t *testing.T) {
	rs, _ := newTestRoomStore()
	_, err := rs.CreateDebate(context.Background(), "topic one", "")
	require.NoError(t, err)
	_, err = rs.CreateDebate(context.Background(), "topic two", "secret")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ListDebatesHandler(rs)(rec, httptest.NewRequest(http.MethodGet, "/debate/list", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Debates []models.Debate `json:"debates"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Debates, 2)
}

func TestResultHandler(t *testing.T) {
	_, st := newTestRoomStore()
	handler := ResultHandler(st)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/debate/result?debate_id=not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	debateID := uuid.New()
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/debate/result?debate_id="+debateID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	winner := uuid.New()
	require.NoError(t, st.SaveResult(context.Background(), &models.Result{
		DebateID:    debateID,
		Scores:      map[uuid.UUID]models.ScoreVector{winner: {Coherence: 70, Evidence: 60, Logic: 65, Persuasiveness: 75}},
		Totals:      map[uuid.UUID]int{winner: 68},
		WinnerID:    winner,
		Source:      models.SourceHeuristic,
		GeneratedAt: time.Now().UTC(),
	}))

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/debate/result?debate_id="+debateID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, winner, result.WinnerID)
	assert.Equal(t, models.SourceHeuristic, result.Source)
}

func TestEnsureSessionReusesValidCookie(t *testing.T) {
	userID := uuid.New()
	token, err := auth.CreateToken(userID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	rec := httptest.NewRecorder()

	resolved, err := EnsureSession(rec, req)
	require.NoError(t, err)
	assert.Equal(t, userID, resolved)
	assert.Empty(t, rec.Result().Cookies(), "no new cookie when the session is valid")
}

func TestEnsureSessionMintsGuestForBadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", "auth_token=garbage")
	rec := httptest.NewRecorder()

	resolved, err := EnsureSession(rec, req)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resolved)
	require.Len(t, rec.Result().Cookies(), 1)
}
