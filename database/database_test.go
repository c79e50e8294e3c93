package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beatbridge/beatbridge/errors"
	"github.com/beatbridge/beatbridge/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	db, err := New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestNew(t *testing.T) {
	db := newTestDB(t)

	if db.conn == nil {
		t.Error("Database connection should not be nil")
	}
	if db.logger == nil {
		t.Error("Database logger should not be nil")
	}
}

func TestNewWithInvalidPath(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	_, err := New("/nonexistent/path/test.db", logger)
	if err == nil {
		t.Error("Expected error when creating database with invalid path")
	}
}

func TestCreateTables(t *testing.T) {
	db := newTestDB(t)

	tables := []string{"users", "song_tags", "recommendations"}
	for _, table := range tables {
		var count int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("Failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s should exist", table)
		}
	}

	indexes := []string{"idx_song_tags_user_id", "idx_recommendations_user_id"}
	for _, index := range indexes {
		var count int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Errorf("Failed to check index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("Index %s should exist", index)
		}
	}
}

func TestEnsureUser(t *testing.T) {
	db := newTestDB(t)

	if err := db.EnsureUser("alice"); err != nil {
		t.Fatalf("Failed to ensure user: %v", err)
	}

	// Repeated calls must not fail or duplicate
	if err := db.EnsureUser("alice"); err != nil {
		t.Fatalf("Second EnsureUser call failed: %v", err)
	}

	users, err := db.ListUsers()
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected 1 user, got %d", len(users))
	}

	if err := db.EnsureUser(""); err == nil {
		t.Error("Expected validation error for empty user ID")
	}
}

func TestGetUser(t *testing.T) {
	db := newTestDB(t)

	if err := db.EnsureUser("alice"); err != nil {
		t.Fatalf("Failed to ensure user: %v", err)
	}

	user, err := db.GetUser("alice")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user.ID != "alice" {
		t.Errorf("User ID = %s, want alice", user.ID)
	}
	if user.RecommendedArtist != "" {
		t.Errorf("New user should have no recommended artist, got %q", user.RecommendedArtist)
	}

	_, err = db.GetUser("nobody")
	if !errors.IsCode(err, "USER_NOT_FOUND") {
		t.Errorf("Expected USER_NOT_FOUND, got %v", err)
	}
}

func TestCreateAndListSongTags(t *testing.T) {
	db := newTestDB(t)

	db.EnsureUser("alice")
	db.EnsureUser("bob")

	tagRows := []models.SongTag{
		{UserID: "alice", Artist: "Artist1", Title: "Song1", Genre: "pop", Mood: "happy", Tempo: "fast"},
		{UserID: "bob", Artist: "Artist2", Title: "Song2", Genre: "jazz"},
		{UserID: "alice", Artist: "Artist3", Title: "Song3"},
	}
	for _, tag := range tagRows {
		if err := db.CreateSongTag(tag); err != nil {
			t.Fatalf("Failed to create song tag: %v", err)
		}
	}

	all, err := db.ListAllSongTags()
	if err != nil {
		t.Fatalf("Failed to list all song tags: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 tags, got %d", len(all))
	}

	// Insertion order is preserved
	if all[0].Artist != "Artist1" || all[1].Artist != "Artist2" || all[2].Artist != "Artist3" {
		t.Errorf("Tags out of insertion order: %v, %v, %v", all[0].Artist, all[1].Artist, all[2].Artist)
	}
	if all[0].Genre != "pop" || all[0].Mood != "happy" || all[0].Tempo != "fast" {
		t.Errorf("Tag dimensions not round-tripped: %+v", all[0])
	}
	if all[2].Genre != "" || all[2].Mood != "" || all[2].Tempo != "" {
		t.Errorf("Untagged dimensions should stay empty: %+v", all[2])
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be populated")
	}

	aliceTags, err := db.ListSongTagsForUser("alice")
	if err != nil {
		t.Fatalf("Failed to list song tags for user: %v", err)
	}
	if len(aliceTags) != 2 {
		t.Errorf("Expected 2 tags for alice, got %d", len(aliceTags))
	}
}

func TestCreateSongTagValidation(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		name string
		tag  models.SongTag
	}{
		{"missing user", models.SongTag{Artist: "A", Title: "T"}},
		{"missing artist", models.SongTag{UserID: "alice", Title: "T"}},
		{"missing title", models.SongTag{UserID: "alice", Artist: "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := db.CreateSongTag(tt.tag); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestRecommendationLog(t *testing.T) {
	db := newTestDB(t)
	db.EnsureUser("alice")

	_, err := db.LatestRecommendation("alice")
	if !errors.IsCode(err, "NO_RECOMMENDATION") {
		t.Errorf("Expected NO_RECOMMENDATION for empty log, got %v", err)
	}

	first := models.Recommendation{
		UserID:     "alice",
		ArtistName: "Artist1",
		Reason:     `Because you listened to "Song1" by Artist1, here is an artist you might like: Artist1`,
		CreatedAt:  time.Now(),
	}
	if err := db.CreateRecommendation(first); err != nil {
		t.Fatalf("Failed to create recommendation: %v", err)
	}

	second := models.Recommendation{UserID: "alice", ArtistName: "Artist2", Reason: "r2"}
	if err := db.CreateRecommendation(second); err != nil {
		t.Fatalf("Failed to create second recommendation: %v", err)
	}

	latest, err := db.LatestRecommendation("alice")
	if err != nil {
		t.Fatalf("Failed to get latest recommendation: %v", err)
	}
	if latest.ArtistName != "Artist2" {
		t.Errorf("Latest artist = %s, want Artist2", latest.ArtistName)
	}

	history, err := db.RecommendationHistory("alice")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 history rows, got %d", len(history))
	}
	if history[0].ArtistName != "Artist2" || history[1].ArtistName != "Artist1" {
		t.Errorf("History should be newest first: %s, %s", history[0].ArtistName, history[1].ArtistName)
	}

	artists, err := db.ListRecommendedArtists("alice")
	if err != nil {
		t.Fatalf("Failed to list recommended artists: %v", err)
	}
	if len(artists) != 2 || artists[0] != "Artist1" || artists[1] != "Artist2" {
		t.Errorf("Recommended artists = %v, want [Artist1 Artist2]", artists)
	}
}

func TestUpdateUserRecommendedArtist(t *testing.T) {
	db := newTestDB(t)
	db.EnsureUser("alice")

	if err := db.UpdateUserRecommendedArtist("alice", "Artist1"); err != nil {
		t.Fatalf("Failed to update recommended artist: %v", err)
	}

	user, err := db.GetUser("alice")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user.RecommendedArtist != "Artist1" {
		t.Errorf("RecommendedArtist = %s, want Artist1", user.RecommendedArtist)
	}

	// Overwrites, does not append
	if err := db.UpdateUserRecommendedArtist("alice", "Artist2"); err != nil {
		t.Fatalf("Failed to overwrite recommended artist: %v", err)
	}
	user, _ = db.GetUser("alice")
	if user.RecommendedArtist != "Artist2" {
		t.Errorf("RecommendedArtist = %s, want Artist2", user.RecommendedArtist)
	}

	err = db.UpdateUserRecommendedArtist("nobody", "Artist1")
	if !errors.IsCode(err, "USER_NOT_FOUND") {
		t.Errorf("Expected USER_NOT_FOUND, got %v", err)
	}
}

func TestSetRecommendationFeedback(t *testing.T) {
	db := newTestDB(t)
	db.EnsureUser("alice")

	rec := models.Recommendation{UserID: "alice", ArtistName: "Artist1", Reason: "r"}
	if err := db.CreateRecommendation(rec); err != nil {
		t.Fatalf("Failed to create recommendation: %v", err)
	}

	if err := db.SetRecommendationFeedback(1, "loved it"); err != nil {
		t.Fatalf("Failed to set feedback: %v", err)
	}

	latest, err := db.LatestRecommendation("alice")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.Feedback != "loved it" {
		t.Errorf("Feedback = %q, want 'loved it'", latest.Feedback)
	}

	err = db.SetRecommendationFeedback(999, "missing")
	if !errors.IsCode(err, "NO_RECOMMENDATION") {
		t.Errorf("Expected NO_RECOMMENDATION for unknown id, got %v", err)
	}

	if err := db.SetRecommendationFeedback(0, "bad"); err == nil {
		t.Error("Expected validation error for non-positive id")
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)

	if err := db.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestGetConnectionStats(t *testing.T) {
	db := newTestDB(t)

	stats := db.GetConnectionStats()
	if stats.OpenConnections < 0 {
		t.Error("OpenConnections should not be negative")
	}
}
