package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sai-assistant/sai/internal/cache"
	"github.com/sai-assistant/sai/pkg/logger"
)

// StatsRecord is one persisted cache counter snapshot.
type StatsRecord struct {
	Entries    int       `json:"entries"`
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Evictions  int64     `json:"evictions"`
	RecordedAt time.Time `json:"recorded_at"`
}

// StatsStorage persists cache counter snapshots across sessions.
type StatsStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStatsStorage creates a new SQLite stats storage
func NewStatsStorage(db *sql.DB, log *logger.Logger) (*StatsStorage, error) {
	storage := &StatsStorage{
		db:     db,
		logger: log.Named("sqlite-stats"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *StatsStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entries INTEGER NOT NULL,
			hits INTEGER NOT NULL,
			misses INTEGER NOT NULL,
			evictions INTEGER NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache_stats table: %w", err)
	}
	return nil
}

// Record stores a cache counter snapshot. Called at shutdown.
func (s *StatsStorage) Record(stats cache.Stats) error {
	_, err := s.db.Exec(
		`INSERT INTO cache_stats (entries, hits, misses, evictions, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		stats.Size,
		stats.Hits,
		stats.Misses,
		stats.Evictions,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cache stats: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil when none exists.
func (s *StatsStorage) Latest() (*StatsRecord, error) {
	row := s.db.QueryRow(
		`SELECT entries, hits, misses, evictions, recorded_at FROM cache_stats ORDER BY id DESC LIMIT 1`,
	)

	var r StatsRecord
	var recordedAt string
	err := row.Scan(&r.Entries, &r.Hits, &r.Misses, &r.Evictions, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache stats row: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache stats timestamp: %w", err)
	}
	r.RecordedAt = ts
	return &r, nil
}
