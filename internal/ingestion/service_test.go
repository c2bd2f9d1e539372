package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/export"
	"github.com/suporte-sac/zendesk-etl/internal/models"
	"github.com/suporte-sac/zendesk-etl/internal/storage"
	"github.com/suporte-sac/zendesk-etl/internal/zendesk"
)

// memStore is an in-memory Store for orchestration tests.
type memStore struct {
	mu           sync.Mutex
	rows         map[string][]models.NormalizedRow
	dedupeCalls  []dedupeCall
	dedupeResult int64
	dedupeErr    error
	loading      int
}

type dedupeCall struct {
	table    string
	key      []string
	tiebreak string
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string][]models.NormalizedRow)}
}

func (s *memStore) BeginBatch(_ context.Context, table string, _ []string) (storage.BatchTx, error) {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	return &memBatch{store: s, table: table}, nil
}

func (s *memStore) Dedupe(_ context.Context, table string, key []string, tiebreak string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading != 0 {
		return 0, fmt.Errorf("dedupe ran with %d batches still open", s.loading)
	}
	s.dedupeCalls = append(s.dedupeCalls, dedupeCall{table: table, key: key, tiebreak: tiebreak})
	return s.dedupeResult, s.dedupeErr
}

func (s *memStore) Close() error { return nil }

func (s *memStore) count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[table])
}

type memBatch struct {
	store *memStore
	table string
	rows  []models.NormalizedRow
}

func (b *memBatch) InsertRow(_ context.Context, row models.NormalizedRow) error {
	b.rows = append(b.rows, row)
	return nil
}

func (b *memBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.loading--
	b.store.rows[b.table] = append(b.store.rows[b.table], b.rows...)
	return nil
}

func (b *memBatch) Rollback() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.loading--
	return nil
}

// memFetcher serves canned records per window label and tracks fetch
// concurrency.
type memFetcher struct {
	mu         sync.Mutex
	byWindow   map[string][]models.RawRecord
	errWindows map[string]error
	activities []models.RawRecord
	delay      time.Duration
	inFlight   int
	maxFlight  int
}

func (f *memFetcher) SearchTickets(_ context.Context, w models.Window) ([]models.RawRecord, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err := f.errWindows[w.Label()]; err != nil {
		return f.byWindow[w.Label()], err
	}
	return f.byWindow[w.Label()], nil
}

func (f *memFetcher) FetchActivities(context.Context) ([]models.RawRecord, error) {
	return f.activities, nil
}

// memStatus captures the last persisted run status.
type memStatus struct {
	mu   sync.Mutex
	last *models.RunStatus
}

func (s *memStatus) PutRunStatus(_ context.Context, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &status
	return nil
}

func (s *memStatus) GetRunStatus(_ context.Context, _ string) (*models.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *memStatus) Close() error { return nil }

func tickets(ids ...int) []models.RawRecord {
	out := make([]models.RawRecord, len(ids))
	for i, id := range ids {
		out[i] = models.NewRawRecord(map[string]any{
			"id":         float64(id),
			"subject":    fmt.Sprintf("ticket %d", id),
			"created_at": "2024-01-01T10:00:00Z",
		})
	}
	return out
}

func testConfig(workers int) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			TicketsTable:    "sac_tickets",
			ActivitiesTable: "sac_activities",
			MaxColumnWidth:  255,
		},
		Pipeline: config.PipelineConfig{
			BatchSize: 500,
			Workers:   workers,
		},
	}
}

func newTestService(cfg *config.Config, store *memStore, fetcher *memFetcher, status storage.StatusStore) *Service {
	return NewService(cfg, Deps{
		Fetcher: fetcher,
		Store:   store,
		Loader:  storage.NewLoader(store, cfg.Pipeline, cfg.Storage.MaxColumnWidth),
		Status:  status,
	})
}

func TestRun_EndToEnd(t *testing.T) {
	store := newMemStore()
	store.dedupeResult = 2
	fetcher := &memFetcher{byWindow: map[string][]models.RawRecord{
		"2024-01-01": tickets(1, 2, 3),
		"2024-01-02": tickets(4, 5),
	}}
	cfg := testConfig(2)
	svc := newTestService(cfg, store, fetcher, nil)

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		ModePersist)

	assert.Equal(t, models.StateDone, report.State)
	assert.NoError(t, report.FatalErr)
	assert.NoError(t, report.DedupeErr)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "tickets", report.Entity)

	assert.Equal(t, 3, report.WindowsAttempted())
	assert.Zero(t, report.WindowsFailed())
	assert.Equal(t, 5, report.RowsFetched())
	assert.Equal(t, 5, report.RowsInserted())
	assert.Zero(t, report.RowsFailed())
	assert.Equal(t, int64(2), report.DuplicatesRemoved)

	assert.Equal(t, 5, store.count("sac_tickets"))
	require.Len(t, store.dedupeCalls, 1)
	assert.Equal(t, "sac_tickets", store.dedupeCalls[0].table)
	assert.Equal(t, []string{"id", "created_at"}, store.dedupeCalls[0].key)
	assert.Equal(t, "id", store.dedupeCalls[0].tiebreak)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

// TestRun_PaginatedSourceEndToEnd drives the real API client against a stub
// server: day 1 paginates 100+100+40, day 2 serves one page of 5, for 245
// records across 2 windows.
func TestRun_PaginatedSourceEndToEnd(t *testing.T) {
	writePage := func(t *testing.T, w http.ResponseWriter, firstID, size int, next string) {
		t.Helper()
		results := make([]map[string]any, size)
		for i := range results {
			results[i] = map[string]any{
				"id":         firstID + i,
				"subject":    fmt.Sprintf("ticket %d", firstID+i),
				"created_at": "2024-01-01T12:00:00Z",
			}
		}
		body := map[string]any{"results": results, "next_page": nil}
		if next != "" {
			body["next_page"] = next
		}
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		day := r.URL.Query().Get("day")
		page := r.URL.Query().Get("page")
		if day == "" {
			query := r.URL.Query().Get("query")
			if strings.Contains(query, `created_at>="2024-01-01"`) {
				day = "1"
			} else {
				day = "2"
			}
			page = "1"
		}

		switch {
		case day == "1" && page == "1":
			writePage(t, w, 1, 100, server.URL+"/api/v2/search.json?day=1&page=2")
		case day == "1" && page == "2":
			writePage(t, w, 101, 100, server.URL+"/api/v2/search.json?day=1&page=3")
		case day == "1" && page == "3":
			writePage(t, w, 201, 40, "")
		case day == "2":
			writePage(t, w, 241, 5, "")
		default:
			t.Errorf("unexpected page request: %s", r.URL)
		}
	}))
	defer server.Close()

	client := zendesk.NewClient(config.ZendeskConfig{
		BaseURL:  server.URL,
		Email:    "etl@example.com",
		APIToken: "secret",
		Timeout:  5 * time.Second,
		MaxPages: 100,
	})
	store := newMemStore()
	cfg := testConfig(2)
	svc := NewService(cfg, Deps{
		Fetcher: client,
		Store:   store,
		Loader:  storage.NewLoader(store, cfg.Pipeline, cfg.Storage.MaxColumnWidth),
	})

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		ModePersist)

	assert.Equal(t, models.StateDone, report.State)
	assert.Equal(t, 2, report.WindowsAttempted())
	assert.Zero(t, report.WindowsFailed())
	assert.Equal(t, 245, report.RowsFetched())
	assert.Equal(t, 245, report.RowsInserted())
	assert.Equal(t, 245, store.count("sac_tickets"))

	fetched := map[string]int{}
	for _, wr := range report.Windows {
		fetched[wr.Window.Label()] = wr.Fetched
		assert.Equal(t, wr.Fetched, wr.Normalized)
	}
	assert.Equal(t, map[string]int{"2024-01-01": 240, "2024-01-02": 5}, fetched)

	require.Len(t, store.dedupeCalls, 1)
	assert.Equal(t, []string{"id", "created_at"}, store.dedupeCalls[0].key)
}

func TestRun_WindowFailureKeepsPartialAndSiblings(t *testing.T) {
	store := newMemStore()
	fetcher := &memFetcher{
		byWindow: map[string][]models.RawRecord{
			"2024-01-01": tickets(1, 2),
			"2024-01-02": tickets(3), // collected before the failure
			"2024-01-03": tickets(4, 5),
		},
		errWindows: map[string]error{
			"2024-01-02": errors.New("status 429"),
		},
	}
	cfg := testConfig(2)
	svc := newTestService(cfg, store, fetcher, nil)

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		ModePersist)

	assert.Equal(t, models.StateDone, report.State)
	assert.Equal(t, 1, report.WindowsFailed())
	// The failed window's partial records still load, as do its siblings.
	assert.Equal(t, 5, report.RowsInserted())
	assert.Equal(t, 5, store.count("sac_tickets"))
	require.Len(t, store.dedupeCalls, 1)
}

func TestRun_BoundsWorkerConcurrency(t *testing.T) {
	store := newMemStore()
	byWindow := make(map[string][]models.RawRecord)
	for day := 1; day <= 6; day++ {
		byWindow[fmt.Sprintf("2024-01-%02d", day)] = tickets(day)
	}
	fetcher := &memFetcher{byWindow: byWindow, delay: 20 * time.Millisecond}
	cfg := testConfig(2)
	svc := newTestService(cfg, store, fetcher, nil)

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		ModePersist)

	assert.Equal(t, 6, report.WindowsAttempted())
	assert.Equal(t, 6, report.RowsInserted())
	assert.LessOrEqual(t, fetcher.maxFlight, 2)
	assert.GreaterOrEqual(t, fetcher.maxFlight, 1)
}

func TestRun_InvalidRangeIsFatal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(testConfig(1), store, &memFetcher{}, nil)

	report := svc.Run(context.Background(),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ModePersist)

	assert.Equal(t, models.StateFailed, report.State)
	assert.ErrorIs(t, report.FatalErr, ErrInvalidRange)
	assert.Zero(t, report.WindowsAttempted())
	assert.Empty(t, store.dedupeCalls)
}

func TestRun_EmptyRangeDoesNothing(t *testing.T) {
	store := newMemStore()
	svc := newTestService(testConfig(1), store, &memFetcher{}, nil)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	report := svc.Run(context.Background(), day, day, ModePersist)

	assert.Equal(t, models.StateDone, report.State)
	assert.Zero(t, report.WindowsAttempted())
	assert.Empty(t, store.dedupeCalls)
}

func TestRun_DedupeFailureMarksRunFailed(t *testing.T) {
	store := newMemStore()
	store.dedupeErr = errors.New("deadlock detected")
	fetcher := &memFetcher{byWindow: map[string][]models.RawRecord{
		"2024-01-01": tickets(1),
	}}
	svc := newTestService(testConfig(1), store, fetcher, nil)

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		ModePersist)

	assert.Equal(t, models.StateFailed, report.State)
	require.Error(t, report.DedupeErr)
	assert.Contains(t, report.DedupeErr.Error(), "sac_tickets")
	// Rows loaded before the failed dedupe stay loaded.
	assert.Equal(t, 1, report.RowsInserted())
}

func TestRun_ExportModeWritesFilesAndSkipsDedupe(t *testing.T) {
	dir := t.TempDir()
	store := newMemStore()
	fetcher := &memFetcher{byWindow: map[string][]models.RawRecord{
		"2024-01-01": tickets(1, 2),
		"2024-01-02": tickets(3),
	}}
	cfg := testConfig(2)
	svc := NewService(cfg, Deps{
		Fetcher:  fetcher,
		Exporter: export.NewNDJSONWriter(dir),
	})

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		ModeExport)

	assert.Equal(t, models.StateDone, report.State)
	assert.Equal(t, 3, report.RowsInserted())
	assert.Empty(t, store.dedupeCalls)

	path := filepath.Join(dir, "sac_tickets_2024-01-01.ndjson")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var row map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		assert.Contains(t, row, "id")
		assert.Contains(t, row, "Numero_do_Pedido")
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestRunActivities_SingleFeedWindow(t *testing.T) {
	store := newMemStore()
	fetcher := &memFetcher{activities: []models.RawRecord{
		models.NewRawRecord(map[string]any{
			"id":         float64(1),
			"verb":       "tickets.assignment",
			"created_at": "2024-01-01T10:00:00Z",
		}),
		models.NewRawRecord(map[string]any{
			"id":         float64(2),
			"verb":       "tickets.comment",
			"created_at": "2024-01-01T11:00:00Z",
		}),
	}}
	svc := newTestService(testConfig(2), store, fetcher, nil)

	report := svc.RunActivities(context.Background(), ModePersist)

	assert.Equal(t, models.StateDone, report.State)
	assert.Equal(t, "activities", report.Entity)
	assert.Equal(t, 1, report.WindowsAttempted())
	assert.Equal(t, 2, report.RowsInserted())
	assert.Equal(t, 2, store.count("sac_activities"))

	require.Len(t, store.dedupeCalls, 1)
	assert.Equal(t, "sac_activities", store.dedupeCalls[0].table)
	assert.Equal(t, []string{"id", "user_id", "actor_id", "ticket_id", "action"}, store.dedupeCalls[0].key)
}

func TestDeliver_AdvancesNormalizeThenLoad(t *testing.T) {
	store := newMemStore()
	svc := newTestService(testConfig(1), store, &memFetcher{}, nil)

	var phases []models.RunState
	advance := func(st models.RunState) { phases = append(phases, st) }

	w := models.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	wr := svc.deliver(context.Background(), svc.tickets, w, ModePersist, tickets(1, 2), nil, advance)

	assert.Equal(t, 2, wr.Inserted)
	assert.Equal(t, []models.RunState{models.StateNormalizing, models.StateLoading}, phases)
}

func TestLaterState_NeverRegresses(t *testing.T) {
	assert.Equal(t, models.StateLoading, laterState(models.StateLoading, models.StateNormalizing))
	assert.Equal(t, models.StateLoading, laterState(models.StateNormalizing, models.StateLoading))
	assert.Equal(t, models.StateDone, laterState(models.StateDone, models.StateFetching))
	assert.Equal(t, models.StateFetching, laterState(models.StatePlanned, models.StateFetching))
}

func TestRun_PersistsRunStatus(t *testing.T) {
	store := newMemStore()
	store.dedupeResult = 1
	status := &memStatus{}
	fetcher := &memFetcher{byWindow: map[string][]models.RawRecord{
		"2024-01-01": tickets(1, 2),
	}}
	svc := newTestService(testConfig(1), store, fetcher, status)

	report := svc.Run(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		ModePersist)

	require.NotNil(t, status.last)
	assert.Equal(t, report.RunID, status.last.RunID)
	assert.Equal(t, "tickets", status.last.Entity)
	assert.Equal(t, string(models.StateDone), status.last.State)
	assert.Equal(t, 1, status.last.WindowsAttempted)
	assert.Equal(t, 2, status.last.RowsInserted)
	assert.Equal(t, int64(1), status.last.DuplicatesRemoved)
	assert.Empty(t, status.last.ErrorMessage)
}
