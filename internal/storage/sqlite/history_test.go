package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sai-assistant/sai/internal/cache"
	"github.com/sai-assistant/sai/pkg/logger"
)

func testDB(t *testing.T) *HistoryStorage {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewHistoryStorage(db, logger.Nop())
	if err != nil {
		t.Fatalf("init history storage: %v", err)
	}
	return storage
}

func record(utterance, response string, cached bool) *ExchangeRecord {
	return &ExchangeRecord{
		Utterance: utterance,
		Response:  response,
		Mode:      "default",
		Engine:    "local-whisper",
		Cached:    cached,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStoreAndRecent(t *testing.T) {
	s := testDB(t)

	for _, r := range []*ExchangeRecord{
		record("first", "a1", false),
		record("second", "a2", false),
		record("third", "a3", true),
	} {
		if _, err := s.Store(r); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	got, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}
	if got[0].Utterance != "third" || got[1].Utterance != "second" {
		t.Errorf("want newest first, got %q then %q", got[0].Utterance, got[1].Utterance)
	}
	if !got[0].Cached {
		t.Error("cached flag lost on round trip")
	}
}

func TestRecentPairsSkipsCached(t *testing.T) {
	s := testDB(t)

	s.Store(record("first", "a1", false))
	s.Store(record("second", "a2", true))
	s.Store(record("third", "a3", false))

	pairs, err := s.RecentPairs(10)
	if err != nil {
		t.Fatalf("recent pairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("want 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Utterance != "first" || pairs[1].Utterance != "third" {
		t.Errorf("want oldest first without cached, got %q then %q", pairs[0].Utterance, pairs[1].Utterance)
	}
}

func TestPrune(t *testing.T) {
	s := testDB(t)
	for i := 0; i < 5; i++ {
		s.Store(record(fmt.Sprintf("u%d", i), "a", false))
	}

	if err := s.Prune(2); err != nil {
		t.Fatalf("prune: %v", err)
	}
	got, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records after prune, got %d", len(got))
	}
	if got[0].Utterance != "u3" || got[1].Utterance != "u4" {
		t.Errorf("prune should keep the newest records, got %q and %q", got[0].Utterance, got[1].Utterance)
	}
}

func TestDeleteAll(t *testing.T) {
	s := testDB(t)
	s.Store(record("first", "a1", false))

	if err := s.DeleteAll(); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	got, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty history, got %d records", len(got))
	}
}

func TestStatsRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	s, err := NewStatsStorage(db, logger.Nop())
	if err != nil {
		t.Fatalf("init stats storage: %v", err)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("latest on empty table: %v", err)
	}
	if latest != nil {
		t.Fatal("want nil on empty table")
	}

	if err := s.Record(cache.Stats{Size: 7, Hits: 5, Misses: 3, Evictions: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	latest, err = s.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Entries != 7 || latest.Hits != 5 || latest.Misses != 3 || latest.Evictions != 1 {
		t.Errorf("round trip mismatch: %+v", latest)
	}
}
