package database

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/beatbridge/beatbridge/errors"
	"github.com/beatbridge/beatbridge/models"
)

// Database connection pool constants
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultConnMaxIdleTime = 5 * time.Minute
	DefaultHealthCheck     = true
	HealthCheckInterval    = 30 * time.Second
)

type DB struct {
	conn         *sql.DB
	logger       *logrus.Logger
	mu           sync.RWMutex
	pool         *ConnectionPool
	shutdownChan chan struct{}
}

// ConnectionPool manages database connection pool settings
type ConnectionPool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	HealthCheck     bool
	mu              sync.RWMutex
	stats           ConnectionStats
}

// ConnectionStats tracks connection pool statistics
type ConnectionStats struct {
	OpenConnections   int
	IdleConnections   int
	ConnectionsInUse  int
	FailedConnections int
	HealthChecks      int
	LastHealthCheck   time.Time
}

func New(dbPath string, logger *logrus.Logger) (*DB, error) {
	return NewWithPool(dbPath, logger, DefaultPoolConfig())
}

// NewWithPool creates a new database connection with custom pool configuration
func NewWithPool(dbPath string, logger *logrus.Logger, poolConfig *ConnectionPool) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "CONNECTION_FAILED", "failed to open database").
			WithContext("path", dbPath)
	}

	conn.SetMaxOpenConns(poolConfig.MaxOpenConns)
	conn.SetMaxIdleConns(poolConfig.MaxIdleConns)
	conn.SetConnMaxLifetime(poolConfig.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(poolConfig.ConnMaxIdleTime)

	if err := conn.Ping(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "CONNECTION_FAILED", "failed to ping database").
			WithContext("path", dbPath)
	}

	db := &DB{
		conn:         conn,
		logger:       logger,
		pool:         poolConfig,
		shutdownChan: make(chan struct{}),
	}

	if err := db.createTables(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "MIGRATION_FAILED", "failed to create database tables").
			WithContext("path", dbPath)
	}

	if poolConfig.HealthCheck {
		go db.healthCheckLoop()
	}

	return db, nil
}

// DefaultPoolConfig returns default connection pool configuration
func DefaultPoolConfig() *ConnectionPool {
	return &ConnectionPool{
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		ConnMaxIdleTime: DefaultConnMaxIdleTime,
		HealthCheck:     DefaultHealthCheck,
	}
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	select {
	case <-db.shutdownChan:
		// Already closed
	default:
		close(db.shutdownChan)
	}

	if err := db.conn.Close(); err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "CLOSE_FAILED", "failed to close database connection")
	}
	return nil
}

// Ping checks whether the database connection is alive.
func (db *DB) Ping() error {
	if err := db.conn.Ping(); err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "CONNECTION_FAILED", "database ping failed")
	}
	return nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			recommended_artist TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS song_tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			artist TEXT NOT NULL,
			title TEXT NOT NULL,
			genre TEXT NOT NULL DEFAULT '',
			mood TEXT NOT NULL DEFAULT '',
			tempo TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			artist_name TEXT NOT NULL,
			reason TEXT NOT NULL,
			feedback TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_song_tags_user_id ON song_tags(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_song_tags_created_at ON song_tags(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user_id ON recommendations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_created_at ON recommendations(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return errors.Wrap(err, errors.CategoryDatabase, "MIGRATION_FAILED", "failed to execute table creation query").
				WithContext("query", query)
		}
	}

	return nil
}

// EnsureUser creates the user row if it does not exist yet.
func (db *DB) EnsureUser(userID string) error {
	if userID == "" {
		return errors.ErrValidationFailed.WithContext("field", "userID")
	}

	_, err := db.conn.Exec(`INSERT OR IGNORE INTO users (id) VALUES (?)`, userID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to ensure user").
			WithContext("userID", userID)
	}
	return nil
}

// GetUser fetches one user from the directory.
func (db *DB) GetUser(userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.ErrValidationFailed.WithContext("field", "userID")
	}

	var user models.User
	err := db.conn.QueryRow(`SELECT id, recommended_artist FROM users WHERE id = ?`, userID).
		Scan(&user.ID, &user.RecommendedArtist)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrUserNotFound.WithContext("userID", userID)
		}
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query user").
			WithContext("userID", userID)
	}

	return &user, nil
}

// ListUsers returns the whole user directory sorted by ID.
func (db *DB) ListUsers() ([]models.User, error) {
	rows, err := db.conn.Query(`SELECT id, recommended_artist FROM users ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query users")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.RecommendedArtist); err != nil {
			db.logger.WithError(err).Error("Failed to scan user")
			continue
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "error occurred during user iteration")
	}

	return users, nil
}

// CreateSongTag appends one tag to a user's history. History rows are
// retained, never overwritten.
func (db *DB) CreateSongTag(tag models.SongTag) error {
	if tag.UserID == "" {
		return errors.ErrValidationFailed.WithContext("field", "userID")
	}
	if tag.Artist == "" {
		return errors.ErrValidationFailed.WithContext("field", "artist")
	}
	if tag.Title == "" {
		return errors.ErrValidationFailed.WithContext("field", "title")
	}

	createdAt := tag.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.conn.Exec(`INSERT INTO song_tags (user_id, artist, title, genre, mood, tempo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tag.UserID, tag.Artist, tag.Title, tag.Genre, tag.Mood, tag.Tempo, createdAt)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to insert song tag").
			WithContext("userID", tag.UserID).
			WithContext("artist", tag.Artist)
	}

	return nil
}

// ListAllSongTags returns every tag across all users in insertion order.
// This is the bulk load the recommendation engine runs on.
func (db *DB) ListAllSongTags() ([]models.SongTag, error) {
	rows, err := db.conn.Query(`SELECT id, user_id, artist, title, genre, mood, tempo, created_at
		FROM song_tags ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query song tags")
	}
	defer rows.Close()

	return scanSongTags(rows, db.logger)
}

// ListSongTagsForUser returns one user's tag history in insertion order.
func (db *DB) ListSongTagsForUser(userID string) ([]models.SongTag, error) {
	if userID == "" {
		return nil, errors.ErrValidationFailed.WithContext("field", "userID")
	}

	rows, err := db.conn.Query(`SELECT id, user_id, artist, title, genre, mood, tempo, created_at
		FROM song_tags WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query song tags for user").
			WithContext("userID", userID)
	}
	defer rows.Close()

	return scanSongTags(rows, db.logger)
}

func scanSongTags(rows *sql.Rows, logger *logrus.Logger) ([]models.SongTag, error) {
	var tags []models.SongTag
	for rows.Next() {
		var tag models.SongTag
		err := rows.Scan(&tag.ID, &tag.UserID, &tag.Artist, &tag.Title,
			&tag.Genre, &tag.Mood, &tag.Tempo, &tag.CreatedAt)
		if err != nil {
			logger.WithError(err).Error("Failed to scan song tag")
			continue
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "error occurred during song tag iteration")
	}

	return tags, nil
}

// CreateRecommendation appends one row to the recommendation log.
func (db *DB) CreateRecommendation(rec models.Recommendation) error {
	if rec.UserID == "" {
		return errors.ErrValidationFailed.WithContext("field", "userID")
	}
	if rec.ArtistName == "" {
		return errors.ErrValidationFailed.WithContext("field", "artistName")
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.conn.Exec(`INSERT INTO recommendations (user_id, artist_name, reason, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.ArtistName, rec.Reason, createdAt)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to insert recommendation").
			WithContext("userID", rec.UserID).
			WithContext("artist", rec.ArtistName)
	}

	return nil
}

// ListRecommendedArtists returns the artist names already present in a
// user's recommendation history. The engine uses this as its exclusion set.
func (db *DB) ListRecommendedArtists(userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.ErrValidationFailed.WithContext("field", "userID")
	}

	rows, err := db.conn.Query(`SELECT artist_name FROM recommendations WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query recommended artists").
			WithContext("userID", userID)
	}
	defer rows.Close()

	var artists []string
	for rows.Next() {
		var artist string
		if err := rows.Scan(&artist); err != nil {
			db.logger.WithError(err).WithField("userID", userID).Error("Failed to scan recommended artist")
			continue
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "error occurred during artist iteration").
			WithContext("userID", userID)
	}

	return artists, nil
}

// UpdateUserRecommendedArtist overwrites the denormalized latest-pick field.
func (db *DB) UpdateUserRecommendedArtist(userID, artistName string) error {
	if userID == "" {
		return errors.ErrValidationFailed.WithContext("field", "userID")
	}

	result, err := db.conn.Exec(`UPDATE users SET recommended_artist = ? WHERE id = ?`, artistName, userID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to update recommended artist").
			WithContext("userID", userID).
			WithContext("artist", artistName)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.ErrUserNotFound.WithContext("userID", userID)
	}

	return nil
}

// LatestRecommendation returns the newest recommendation row for a user.
func (db *DB) LatestRecommendation(userID string) (*models.Recommendation, error) {
	if userID == "" {
		return nil, errors.ErrValidationFailed.WithContext("field", "userID")
	}

	var rec models.Recommendation
	err := db.conn.QueryRow(`SELECT id, user_id, artist_name, reason, feedback, created_at
		FROM recommendations WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID).
		Scan(&rec.ID, &rec.UserID, &rec.ArtistName, &rec.Reason, &rec.Feedback, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrNoRecommendation.WithContext("userID", userID)
		}
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query latest recommendation").
			WithContext("userID", userID)
	}

	return &rec, nil
}

// RecommendationHistory returns a user's recommendation log, newest first.
func (db *DB) RecommendationHistory(userID string) ([]models.Recommendation, error) {
	if userID == "" {
		return nil, errors.ErrValidationFailed.WithContext("field", "userID")
	}

	rows, err := db.conn.Query(`SELECT id, user_id, artist_name, reason, feedback, created_at
		FROM recommendations WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to query recommendation history").
			WithContext("userID", userID)
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		var rec models.Recommendation
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.ArtistName, &rec.Reason, &rec.Feedback, &rec.CreatedAt)
		if err != nil {
			db.logger.WithError(err).WithField("userID", userID).Error("Failed to scan recommendation")
			continue
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "error occurred during recommendation iteration").
			WithContext("userID", userID)
	}

	return recs, nil
}

// SetRecommendationFeedback stores user feedback on one recommendation.
func (db *DB) SetRecommendationFeedback(id int, feedback string) error {
	if id <= 0 {
		return errors.ErrValidationFailed.WithContext("field", "id")
	}

	result, err := db.conn.Exec(`UPDATE recommendations SET feedback = ? WHERE id = ?`, feedback, id)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDatabase, "QUERY_FAILED", "failed to update recommendation feedback").
			WithContext("id", id)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.ErrNoRecommendation.WithContext("id", id)
	}

	return nil
}

// healthCheckLoop runs periodic health checks on the database connection
func (db *DB) healthCheckLoop() {
	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			db.performHealthCheck()
		case <-db.shutdownChan:
			db.logger.Debug("Database health check loop shutting down")
			return
		}
	}
}

// performHealthCheck checks database connection health and updates statistics
func (db *DB) performHealthCheck() {
	db.pool.mu.Lock()
	defer db.pool.mu.Unlock()

	db.pool.stats.HealthChecks++
	db.pool.stats.LastHealthCheck = time.Now()

	if err := db.conn.Ping(); err != nil {
		db.pool.stats.FailedConnections++
		db.logger.WithError(err).Error("Database health check failed")
		return
	}

	stats := db.conn.Stats()
	db.pool.stats.OpenConnections = stats.OpenConnections
	db.pool.stats.IdleConnections = stats.Idle
	db.pool.stats.ConnectionsInUse = stats.InUse

	db.logger.WithFields(logrus.Fields{
		"open_connections":   stats.OpenConnections,
		"idle_connections":   stats.Idle,
		"connections_in_use": stats.InUse,
	}).Debug("Database health check completed")
}

// GetConnectionStats returns current connection pool statistics
func (db *DB) GetConnectionStats() ConnectionStats {
	db.pool.mu.RLock()
	defer db.pool.mu.RUnlock()

	stats := db.conn.Stats()
	db.pool.stats.OpenConnections = stats.OpenConnections
	db.pool.stats.IdleConnections = stats.Idle
	db.pool.stats.ConnectionsInUse = stats.InUse

	return db.pool.stats
}
