package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sai-assistant/sai/internal/conversation"
	"github.com/sai-assistant/sai/pkg/logger"
)

// ExchangeRecord is one persisted utterance/response exchange.
type ExchangeRecord struct {
	ID        int64     `json:"id"`
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	Mode      string    `json:"mode"`
	Engine    string    `json:"engine"`
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStorage handles storage of exchange records
type HistoryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewHistoryStorage creates a new SQLite history storage
func NewHistoryStorage(db *sql.DB, log *logger.Logger) (*HistoryStorage, error) {
	storage := &HistoryStorage{
		db:     db,
		logger: log.Named("sqlite-history"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *HistoryStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			utterance TEXT NOT NULL,
			response TEXT NOT NULL,
			mode TEXT NOT NULL,
			engine TEXT NOT NULL,
			cached INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

// Store stores an exchange record
func (s *HistoryStorage) Store(record *ExchangeRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO history (utterance, response, mode, engine, cached, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.Utterance,
		record.Response,
		record.Mode,
		record.Engine,
		record.Cached,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert exchange: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// Recent returns the newest limit records, newest first.
func (s *HistoryStorage) Recent(limit int) ([]*ExchangeRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, utterance, response, mode, engine, cached, created_at
		FROM history
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return s.scanRows(rows)
}

// All returns every record, oldest first. Used by the export endpoint.
func (s *HistoryStorage) All() ([]*ExchangeRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, utterance, response, mode, engine, cached, created_at
		FROM history
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return s.scanRows(rows)
}

// Prune deletes everything but the newest keep records.
func (s *HistoryStorage) Prune(keep int) error {
	_, err := s.db.Exec(
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

// DeleteAll clears the history table.
func (s *HistoryStorage) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// RecentPairs loads the newest limit non-cached exchanges as
// conversation pairs, oldest first, for restoring the context at
// startup.
func (s *HistoryStorage) RecentPairs(limit int) ([]conversation.Pair, error) {
	records, err := s.Recent(limit)
	if err != nil {
		return nil, err
	}

	pairs := make([]conversation.Pair, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Cached {
			continue
		}
		pairs = append(pairs, conversation.Pair{
			Utterance: r.Utterance,
			Response:  r.Response,
			Mode:      r.Mode,
			At:        r.CreatedAt,
		})
	}
	return pairs, nil
}

// scanRows converts query results to exchange records
func (s *HistoryStorage) scanRows(rows *sql.Rows) ([]*ExchangeRecord, error) {
	var records []*ExchangeRecord
	for rows.Next() {
		var r ExchangeRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Utterance, &r.Response, &r.Mode, &r.Engine, &r.Cached, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exchange timestamp: %w", err)
		}
		r.CreatedAt = ts
		records = append(records, &r)
	}
	return records, rows.Err()
}
