package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/buddy"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/client"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/controller"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	tables  map[string]models.TableMetadata
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]models.TableMetadata)}
}

func (m *memStore) Upsert(ctx context.Context, meta models.TableMetadata) (*models.TableMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta.UpdatedAt = time.Now().UTC()
	m.tables[meta.TableName] = meta
	return &meta, nil
}

func (m *memStore) Get(ctx context.Context, name string) (*models.TableMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) List(ctx context.Context) ([]models.TableMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TableMetadata, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

type memCache struct {
	mu      sync.Mutex
	answers map[string]models.QueryResult
	purges  int
}

func newMemCache() *memCache {
	return &memCache{answers: make(map[string]models.QueryResult)}
}

func (m *memCache) Get(ctx context.Context, q string) (*models.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.answers[q]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (m *memCache) Set(ctx context.Context, q string, r *models.QueryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[q] = *r
	return nil
}

func (m *memCache) Purge(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = make(map[string]models.QueryResult)
	m.purges++
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	result  *models.QueryResult
	err     error
	pingErr error
}

func (f *fakeGenerator) Generate(ctx context.Context, q string) (*models.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func (f *fakeGenerator) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeGenerator) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	store *memStore
	cache *memCache
	gen   *fakeGenerator
	srv   *Server
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		store: newMemStore(),
		cache: newMemCache(),
		gen: &fakeGenerator{result: &models.QueryResult{
			SQLQuery:     "SELECT COUNT(*) FROM clientes;",
			Explanation:  "Counts customers.",
			Optimization: "Index clientes.id.",
		}},
	}
	srv, err := NewServer(ServerDeps{
		Handlers: &Handlers{
			Store:     f.store,
			Answers:   f.cache,
			Generator: f.gen,
			Model:     "test-model",
			Logger:    logger,
		},
		Config: cfg,
	})
	require.NoError(t, err)
	f.srv = srv
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRoot(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	rec, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	rec, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-model", body["config"].(map[string]any)["model"])

	f.gen.pingErr = errors.New("401 unauthorized")
	rec, body = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["detail"], "401 unauthorized")

	f.gen.pingErr = nil
	f.store.pingErr = errors.New("dial tcp: connection refused")
	rec, _ = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAsk_ValidatesQuestion(t *testing.T) {
	f := newFixture(t, ServerConfig{})

	for _, body := range []string{
		`{"question":"   "}`,
		`{"question":"` + strings.Repeat("x", models.MaxQuestionLength+1) + `"}`,
		`{not json`,
	} {
		rec, out := f.do(t, http.MethodPost, "/ask", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, out["detail"])
		assert.EqualValues(t, http.StatusBadRequest, out["code"])
	}
	assert.Zero(t, f.gen.callCount())
}

func TestAsk_GeneratesAndCaches(t *testing.T) {
	f := newFixture(t, ServerConfig{})

	rec, out := f.do(t, http.MethodPost, "/ask", `{"question":"  how many customers?  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT COUNT(*) FROM clientes;", out["sql_query"])
	assert.Equal(t, 1, f.gen.callCount())

	rec, _ = f.do(t, http.MethodPost, "/ask", `{"question":"how many customers?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.gen.callCount(), "second ask served from cache")
}

func TestAsk_GeneratorFailure(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	f.gen.err = errors.New("model overloaded")

	rec, out := f.do(t, http.MethodPost, "/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error: model overloaded", out["detail"])
}

func TestAsk_RateLimited(t *testing.T) {
	f := newFixture(t, ServerConfig{AskRate: 0.001})

	var codes []int
	for i := 0; i < 7; i++ {
		rec, _ := f.do(t, http.MethodPost, "/ask", `{"question":"q"}`)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[len(codes)-1])
}

func TestMetadata(t *testing.T) {
	f := newFixture(t, ServerConfig{})

	rec, out := f.do(t, http.MethodPost, "/metadata", `{"table_name":"clientes","schema_info":"id INT","description":"Customers"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "clientes", out["table_name"])
	assert.Equal(t, 1, f.cache.purges)

	rec, out = f.do(t, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["total_count"])

	for _, body := range []string{
		`{"table_name":"","schema_info":"id INT"}`,
		`{"table_name":"clientes","schema_info":"  "}`,
		`{"table_name":"bad name","schema_info":"id INT"}`,
	} {
		rec, _ := f.do(t, http.MethodPost, "/metadata", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	rec, out := f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", out["detail"])
}

func TestCORS(t *testing.T) {
	f := newFixture(t, ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestEndToEnd drives the controller through the real client against the server.
func TestEndToEnd(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := buddy.NewService(client.NewClient(client.ClientConfig{
		BaseURL: ts.URL,
		Timeout: 2 * time.Second,
		Logger:  logger,
	}))
	ctl := controller.New(svc, controller.Options{Logger: logger})

	ctx := context.Background()
	assert.Equal(t, controller.ConnectivityHealthy, ctl.CheckHealth(ctx))

	require.NoError(t, ctl.Submit(ctx, "how many customers?"))
	s := ctl.State()
	require.Equal(t, controller.SubmissionSuccess, s.Submission)
	assert.Equal(t, "SELECT COUNT(*) FROM clientes;", s.Result.SQLQuery)

	require.NoError(t, f.cache.Purge(ctx))
	f.gen.fail(errors.New("DB timeout"))
	require.NoError(t, ctl.Retry(ctx))
	s = ctl.State()
	assert.Equal(t, controller.SubmissionFailed, s.Submission)
	assert.Equal(t, "internal server error: DB timeout", s.Error)
	assert.Equal(t, "how many customers?", s.LastQuestion)

	ack := svc.AddTableMetadata(ctx, "pedidos", "id INT, total DECIMAL", "Orders")
	require.True(t, ack.Success, ack.Error)
	tables := svc.GetTables(ctx)
	require.True(t, tables.Success)
	assert.Equal(t, 1, tables.Data.TotalCount)

	ts.Close()
	assert.Equal(t, controller.ConnectivityUnreachable, ctl.CheckHealth(ctx))
}
