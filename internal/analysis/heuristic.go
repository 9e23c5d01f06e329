package analysis

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/models"
)

// Phrase vocabularies for the rule-based scorer. Matching is
// case-insensitive substring counting over the participant's combined
// transcript.
var (
	transitionPhrases = []string{
		"however", "furthermore", "moreover", "additionally",
		"nevertheless", "in addition", "on the other hand",
		"first", "second", "finally",
	}
	evidencePhrases = []string{
		"studies show", "research shows", "studies indicate",
		"research indicates", "according to", "evidence shows",
		"data shows", "statistics show", "a study by", "experts agree",
	}
	citationTerms = []string{
		"university", "institute", "journal", "report", "survey",
		"professor", "organization", "agency",
	}
	examplePhrases = []string{
		"for example", "for instance", "such as", "case in point",
		"consider the case",
	}
	causalConnectives = []string{
		"because", "therefore", "thus", "hence", "since",
		"consequently", "as a result", "due to", "leads to",
	}
	causeEffectTerms = []string{
		"cause", "effect", "impact", "consequence", "outcome",
	}
	backReferencePhrases = []string{
		"as i said", "as mentioned", "as stated", "my previous point",
		"earlier i", "to reiterate", "coming back to",
	}
	emphasisWords = []string{
		"clearly", "undoubtedly", "certainly", "absolutely",
		"crucial", "essential", "vital", "critical", "undeniably",
	}
	callToActionPhrases = []string{
		"we must", "we should", "we need to", "it is time",
		"take action", "act now", "imagine",
	}
	conclusionMarkers = []string{
		"in conclusion", "to conclude", "in summary", "ultimately",
		"the bottom line",
	}
)

// HeuristicScorer is the deterministic last tier. It never misses:
// every non-empty transcript yields clamped sub-scores.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

func (s *HeuristicScorer) Name() string { return "heuristic" }

func (s *HeuristicScorer) AttemptScore(_ context.Context, t *Transcript) (*models.Result, error) {
	result := &models.Result{
		DebateID:    t.DebateID,
		Scores:      make(map[uuid.UUID]models.ScoreVector, len(t.Participants)),
		Totals:      make(map[uuid.UUID]int, len(t.Participants)),
		Source:      models.SourceHeuristic,
		GeneratedAt: time.Now().UTC(),
	}
	for _, pt := range t.Participants {
		vec := scoreParticipant(pt, t.Topic)
		result.Scores[pt.ParticipantID] = vec
		result.Totals[pt.ParticipantID] = vec.Total()
	}
	result.WinnerID = pickWinner(t, result.Totals)
	return result, nil
}

func scoreParticipant(pt *ParticipantTranscript, topic string) models.ScoreVector {
	text := strings.ToLower(pt.Combined)
	return models.ScoreVector{
		Coherence:      coherenceScore(text, pt),
		Evidence:       evidenceScore(text),
		Logic:          logicScore(text),
		Persuasiveness: persuasivenessScore(text, topic),
	}
}

func coherenceScore(text string, pt *ParticipantTranscript) int {
	score := 50
	score += 8 * countPhrases(text, transitionPhrases)
	if lengthsAreConsistent(pt.WordCounts) {
		score += 15
	}
	if substantiveSentences(text) >= 3 {
		score += 10
	}
	return clamp(score, 20, 100)
}

func evidenceScore(text string) int {
	score := 40
	score += 15 * countPhrases(text, evidencePhrases)
	if n := 5 * countNumericTokens(text); n > 20 {
		score += 20
	} else {
		score += n
	}
	if countPhrases(text, citationTerms) > 0 {
		score += 20
	}
	score += 8 * countPhrases(text, examplePhrases)
	return clamp(score, 15, 100)
}

func logicScore(text string) int {
	score := 45
	score += 10 * countPhrases(text, causalConnectives)
	if countPhrases(text, causeEffectTerms) > 0 {
		score += 15
	}
	if n := 5 * countPhrases(text, backReferencePhrases); n > 15 {
		score += 15
	} else {
		score += n
	}
	return clamp(score, 20, 100)
}

func persuasivenessScore(text, topic string) int {
	score := 50
	score += 6 * countPhrases(text, emphasisWords)
	score += 8 * countPhrases(text, callToActionPhrases)
	score += 5 * countTopicKeywords(text, topic)
	if countPhrases(text, conclusionMarkers) > 0 {
		score += 12
	}
	return clamp(score, 25, 100)
}

func countPhrases(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		n += strings.Count(text, p)
	}
	return n
}

// countNumericTokens counts tokens containing digits or a percent sign.
func countNumericTokens(text string) int {
	n := 0
	for _, tok := range strings.Fields(text) {
		if strings.ContainsRune(tok, '%') {
			n++
			continue
		}
		if strings.ContainsFunc(tok, unicode.IsDigit) {
			n++
		}
	}
	return n
}

// countTopicKeywords counts occurrences of the topic's significant
// words (length >= 4, stopwords excluded) in the argument text.
func countTopicKeywords(text, topic string) int {
	n := 0
	for _, word := range strings.Fields(strings.ToLower(topic)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(word) < 4 || topicStopwords[word] {
			continue
		}
		n += strings.Count(text, word)
	}
	return n
}

var topicStopwords = map[string]bool{
	"should": true, "would": true, "could": true, "that": true,
	"this": true, "with": true, "have": true, "been": true,
	"does": true, "will": true, "their": true, "there": true,
}

// substantiveSentences counts sentences of at least six words.
func substantiveSentences(text string) int {
	n := 0
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if len(strings.Fields(s)) >= 6 {
			n++
		}
	}
	return n
}

// lengthsAreConsistent reports whether per-argument word-count variance
// is low relative to the mean (coefficient of variation under 0.5).
// A single argument is trivially consistent.
func lengthsAreConsistent(wordCounts []int) bool {
	if len(wordCounts) == 0 {
		return false
	}
	if len(wordCounts) == 1 {
		return true
	}
	mean := 0.0
	for _, c := range wordCounts {
		mean += float64(c)
	}
	mean /= float64(len(wordCounts))
	if mean == 0 {
		return false
	}
	variance := 0.0
	for _, c := range wordCounts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(wordCounts))
	return variance < (0.5*mean)*(0.5*mean)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
