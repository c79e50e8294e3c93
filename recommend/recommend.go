package recommend

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beatbridge/beatbridge/errors"
	"github.com/beatbridge/beatbridge/models"
	"github.com/beatbridge/beatbridge/tags"
)

// DefaultThreshold is the canonical similarity threshold. Callers may
// override it per run; values <= 0 fall back to this default.
const DefaultThreshold = 0.7

// Default weights, genre-dominant. Used when the preference selection
// picks none or all of the tag dimensions.
const (
	DefaultGenreWeight = 0.5
	DefaultMoodWeight  = 0.3
	DefaultTempoWeight = 0.2
)

// Store is the persistence surface the engine needs. *database.DB
// satisfies it.
type Store interface {
	ListAllSongTags() ([]models.SongTag, error)
	ListSongTagsForUser(userID string) ([]models.SongTag, error)
	ListRecommendedArtists(userID string) ([]string, error)
	CreateRecommendation(rec models.Recommendation) error
	UpdateUserRecommendedArtist(userID, artistName string) error
}

// Service computes and persists artist recommendations from tagged songs.
// At most one run executes at a time; concurrent callers get
// ErrRunInProgress instead of queueing.
type Service struct {
	store     Store
	logger    *logrus.Logger
	threshold float64
	runMu     sync.Mutex
}

func New(store Store, logger *logrus.Logger, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		store:     store,
		logger:    logger,
		threshold: threshold,
	}
}

// Weights derives tag weights from a preference selection. Selecting none
// or all three dimensions yields the genre-dominant default; exactly two
// selected dimensions split the weight evenly; a single selected dimension
// takes all of it.
func Weights(prefs models.Preferences) models.TagWeights {
	selected := 0
	if prefs.Genre {
		selected++
	}
	if prefs.Mood {
		selected++
	}
	if prefs.Tempo {
		selected++
	}

	switch selected {
	case 1:
		weights := models.TagWeights{}
		if prefs.Genre {
			weights.Genre = 1
		}
		if prefs.Mood {
			weights.Mood = 1
		}
		if prefs.Tempo {
			weights.Tempo = 1
		}
		return weights
	case 2:
		weights := models.TagWeights{}
		if prefs.Genre {
			weights.Genre = 0.5
		}
		if prefs.Mood {
			weights.Mood = 0.5
		}
		if prefs.Tempo {
			weights.Tempo = 0.5
		}
		return weights
	default:
		return models.TagWeights{
			Genre: DefaultGenreWeight,
			Mood:  DefaultMoodWeight,
			Tempo: DefaultTempoWeight,
		}
	}
}

// similarityMap holds pairwise scores plus, per user, the peers in the
// order their edges were recorded. The order fixes the tie-break during
// candidate selection so runs are reproducible.
type similarityMap struct {
	scores    map[string]map[string]float64
	peerOrder map[string][]string
	pairs     int
}

func (m *similarityMap) record(userA, userB string, score float64) {
	if m.scores[userA] == nil {
		m.scores[userA] = make(map[string]float64)
	}
	if m.scores[userB] == nil {
		m.scores[userB] = make(map[string]float64)
	}
	if _, seen := m.scores[userA][userB]; !seen {
		m.peerOrder[userA] = append(m.peerOrder[userA], userB)
	}
	if _, seen := m.scores[userB][userA]; !seen {
		m.peerOrder[userB] = append(m.peerOrder[userB], userA)
	}
	m.scores[userA][userB] += score
	m.scores[userB][userA] += score
	m.pairs++
}

// buildTagHistory groups the bulk tag load into per-user code tuples.
// Unknown tag strings encode as absent dimensions, never as errors.
func buildTagHistory(allTags []models.SongTag) map[string][]models.TagCombination {
	history := make(map[string][]models.TagCombination)
	for _, tag := range allTags {
		history[tag.UserID] = append(history[tag.UserID], models.TagCombination{
			Genre: tags.GenreCode(tag.Genre),
			Mood:  tags.MoodCode(tag.Mood),
			Tempo: tags.TempoCode(tag.Tempo),
		})
	}
	return history
}

// pairScore is the full cross-product over both histories. A tag repeated
// h times contributes up to h times the matching weight; repetition
// amplifies the affinity signal.
func pairScore(historyA, historyB []models.TagCombination, weights models.TagWeights) float64 {
	score := 0.0
	for _, a := range historyA {
		for _, b := range historyB {
			if a.Genre != tags.Absent && a.Genre == b.Genre {
				score += weights.Genre
			}
			if a.Mood != tags.Absent && a.Mood == b.Mood {
				score += weights.Mood
			}
			if a.Tempo != tags.Absent && a.Tempo == b.Tempo {
				score += weights.Tempo
			}
		}
	}
	return score
}

// computeSimilarities scores every unordered pair of users with non-empty
// histories exactly once and records pairs reaching the threshold
// symmetrically, uncapped. O(n^2 * h^2) for n users with history length h;
// fine at this scale. Bucketing users by genre code first would prune the
// pair set if that ever stops being true.
func computeSimilarities(history map[string][]models.TagCombination, weights models.TagWeights, threshold float64) *similarityMap {
	userIDs := make([]string, 0, len(history))
	for userID, combos := range history {
		if len(combos) == 0 {
			continue
		}
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	similarities := &similarityMap{
		scores:    make(map[string]map[string]float64),
		peerOrder: make(map[string][]string),
	}

	for i := 0; i < len(userIDs); i++ {
		for j := i + 1; j < len(userIDs); j++ {
			score := pairScore(history[userIDs[i]], history[userIDs[j]], weights)
			if score >= threshold {
				similarities.record(userIDs[i], userIDs[j], score)
			}
		}
	}

	return similarities
}

// candidate is one artist pick with its justification clauses.
type candidate struct {
	artist  string
	reasons []string
}

// selectCandidate tallies artists across all of a user's similar peers and
// picks the most common one not yet in the exclusion set. All peers above
// the threshold count equally. Ties break to the artist encountered first
// (peers in edge insertion order, songs in insertion order). Returns nil
// when every candidate artist is excluded.
func (s *Service) selectCandidate(userID string, peers []string, excluded map[string]bool) (*candidate, error) {
	counts := make(map[string]int)
	var firstSeen []string
	var reasons []string

	for _, peer := range peers {
		songs, err := s.store.ListSongTagsForUser(peer)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryRecommend, "PEER_SONGS_FAILED", "failed to load similar user's songs").
				WithContext("userID", userID).
				WithContext("peerID", peer)
		}

		for _, song := range songs {
			if excluded[song.Artist] {
				continue
			}
			if counts[song.Artist] == 0 {
				firstSeen = append(firstSeen, song.Artist)
			}
			counts[song.Artist]++
			reasons = append(reasons, `you listened to "`+song.Title+`" by `+song.Artist)
		}
	}

	best := ""
	for _, artist := range firstSeen {
		if best == "" || counts[artist] > counts[best] {
			best = artist
		}
	}
	if best == "" {
		return nil, nil
	}

	return &candidate{artist: best, reasons: reasons}, nil
}

// buildReason renders the human-readable justification string.
func buildReason(reasons []string, artist string) string {
	if len(reasons) == 0 {
		return "Here is an artist you might like: " + artist
	}
	return "Because " + strings.Join(reasons, ", ") + ", here is an artist you might like: " + artist
}

// processUser runs candidate selection and persistence for one user. It is
// the per-user failure boundary: any error is reported to the caller and
// must not stop other users.
func (s *Service) processUser(userID string, peers []string) (*models.Recommendation, error) {
	previous, err := s.store.ListRecommendedArtists(userID)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(previous))
	for _, artist := range previous {
		excluded[artist] = true
	}

	cand, err := s.selectCandidate(userID, peers, excluded)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, nil
	}

	rec := models.Recommendation{
		UserID:     userID,
		ArtistName: cand.artist,
		Reason:     buildReason(cand.reasons, cand.artist),
		CreatedAt:  time.Now(),
	}

	if err := s.store.CreateRecommendation(rec); err != nil {
		return nil, err
	}
	if err := s.store.UpdateUserRecommendedArtist(userID, cand.artist); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (s *Service) effectiveThreshold(threshold float64) float64 {
	if threshold > 0 {
		return threshold
	}
	return s.threshold
}

// Run executes a full batch recommendation run: load every user's tag
// history, score all pairs, and persist one new recommendation per
// qualifying user. A store failure during the bulk load aborts the run;
// failures while processing an individual user are recorded in the report
// and do not stop the remaining users.
func (s *Service) Run(prefs models.Preferences, threshold float64) (models.RunReport, error) {
	report := models.RunReport{StartedAt: time.Now()}

	if !s.runMu.TryLock() {
		return report, errors.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	similarities, err := s.computeRun(prefs, threshold)
	if err != nil {
		return report, err
	}
	report.SimilarPairs = similarities.pairs

	userIDs := make([]string, 0, len(similarities.scores))
	for userID := range similarities.scores {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	for _, userID := range userIDs {
		rec, err := s.processUser(userID, similarities.peerOrder[userID])
		if err != nil {
			s.logger.WithError(err).WithField("userID", userID).Error("Failed to process user in recommendation run")
			report.Failed = append(report.Failed, userID)
			continue
		}
		if rec == nil {
			s.logger.WithField("userID", userID).Debug("No candidate artist survived exclusion")
			continue
		}
		report.Succeeded = append(report.Succeeded, userID)
		s.logger.WithFields(logrus.Fields{
			"userID": userID,
			"artist": rec.ArtistName,
		}).Info("Stored recommendation")
	}

	report.FinishedAt = time.Now()
	s.logger.WithFields(logrus.Fields{
		"succeeded":     len(report.Succeeded),
		"failed":        len(report.Failed),
		"similar_pairs": report.SimilarPairs,
		"duration":      report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Recommendation run completed")

	return report, nil
}

// RunForUser executes the full algorithm but persists and reports the
// result only for the requesting user. This is the on-demand path behind
// the generate endpoint. Returns ErrNoCandidate when the user has no
// similar peers or every candidate artist is already excluded.
func (s *Service) RunForUser(userID string, prefs models.Preferences, threshold float64) (*models.Recommendation, error) {
	if userID == "" {
		return nil, errors.ErrValidationFailed.WithContext("field", "userID")
	}

	if !s.runMu.TryLock() {
		return nil, errors.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	similarities, err := s.computeRun(prefs, threshold)
	if err != nil {
		return nil, err
	}

	peers := similarities.peerOrder[userID]
	if len(peers) == 0 {
		return nil, errors.ErrNoCandidate.WithContext("userID", userID).
			WithContext("reason", "no similar users above threshold")
	}

	rec, err := s.processUser(userID, peers)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.ErrNoCandidate.WithContext("userID", userID).
			WithContext("reason", "all candidate artists already recommended")
	}

	s.logger.WithFields(logrus.Fields{
		"userID": userID,
		"artist": rec.ArtistName,
	}).Info("Stored on-demand recommendation")

	return rec, nil
}

// computeRun performs the shared load-and-score phase. A failure here is
// fatal for the whole run.
func (s *Service) computeRun(prefs models.Preferences, threshold float64) (*similarityMap, error) {
	allTags, err := s.store.ListAllSongTags()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryRecommend, "HISTORY_LOAD_FAILED", "failed to load song tag history")
	}

	history := buildTagHistory(allTags)
	weights := Weights(prefs)
	effective := s.effectiveThreshold(threshold)

	similarities := computeSimilarities(history, weights, effective)

	s.logger.WithFields(logrus.Fields{
		"users":         len(history),
		"tags":          len(allTags),
		"threshold":     effective,
		"genre_weight":  weights.Genre,
		"mood_weight":   weights.Mood,
		"tempo_weight":  weights.Tempo,
		"similar_pairs": similarities.pairs,
	}).Debug("Computed pairwise similarities")

	return similarities, nil
}
