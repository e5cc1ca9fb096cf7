package cache

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"tribehub/auth"
	"tribehub/errors"
	"tribehub/repositories"
)

func openStore(t *testing.T) repositories.KV {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewKV(db, slog.Default())
}

type stubVerifier map[string]string

func (v stubVerifier) Verify(token string) (string, error) {
	identity, ok := v[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return identity, nil
}

// countingHandler serves a JSON document and counts how many times it
// actually ran, which is how the tests tell a hit from a miss.
type countingHandler struct {
	calls       int
	status      int
	contentType string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	contentType := h.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"id":%q,"serving":%d}`, mux.Vars(r)["id"], h.calls)
}

func newEventRouter(t *testing.T, handler http.Handler, ttl time.Duration) *mux.Router {
	t.Helper()
	c := New(openStore(t), slog.Default())
	r := mux.NewRouter()
	r.Use(auth.HTTPMiddleware(stubVerifier{"tok-alice": "alice"}))
	r.Handle("/api/events/{id}", c.Middleware(ModelKey("event", "id"), ttl)(handler)).Methods(http.MethodGet)
	return r
}

func get(router *mux.Router, path string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestCache_Second_Identical_Read_Is_Served_From_Cache(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	router := newEventRouter(t, handler, 0)

	first := get(router, "/api/events/42", nil)
	second := get(router, "/api/events/42", nil)

	req.Equal(1, handler.calls)
	req.Equal(first.Body.String(), second.Body.String())
	req.Equal("application/json", second.Header().Get("Content-Type"))
}

func TestCache_Irrelevant_Headers_Do_Not_Split_Entries(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	router := newEventRouter(t, handler, 0)

	get(router, "/api/events/42", map[string]string{"User-Agent": "phone-app"})
	get(router, "/api/events/42", map[string]string{"User-Agent": "web-app", "X-Trace": "abc"})

	req.Equal(1, handler.calls)
}

func TestCache_A_Different_Query_Parameter_Is_A_Different_Entry(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	router := newEventRouter(t, handler, 0)

	get(router, "/api/events/42?expand=members", nil)
	get(router, "/api/events/42?expand=schedule", nil)

	req.Equal(2, handler.calls)
}

func TestCache_Query_Parameter_Order_Does_Not_Split_Entries(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	router := newEventRouter(t, handler, 0)

	get(router, "/api/events/42?a=1&b=2", nil)
	get(router, "/api/events/42?b=2&a=1", nil)

	req.Equal(1, handler.calls)
}

func TestCache_Identities_Get_Separate_Entries(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	router := newEventRouter(t, handler, 0)

	get(router, "/api/events/42", nil)
	get(router, "/api/events/42", map[string]string{"Authorization": "Bearer tok-alice"})
	get(router, "/api/events/42", map[string]string{"Authorization": "Bearer tok-alice"})

	// One anonymous miss, one authenticated miss, one authenticated hit
	req.Equal(2, handler.calls)
}

func TestCache_Failure_Statuses_Are_Never_Cached(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{status: http.StatusNotFound}
	router := newEventRouter(t, handler, 0)

	get(router, "/api/events/42", nil)
	get(router, "/api/events/42", nil)

	req.Equal(2, handler.calls)
}

func TestCache_Opaque_Bodies_Are_Never_Cached(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{contentType: "text/html"}
	router := newEventRouter(t, handler, 0)

	get(router, "/api/events/42", nil)
	get(router, "/api/events/42", nil)

	req.Equal(2, handler.calls)
}

func TestCache_Writes_Bypass_The_Read_Path(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	c := New(openStore(t), slog.Default())
	router := mux.NewRouter()
	router.Handle("/api/events/{id}", c.Middleware(ModelKey("event", "id"), 0)(handler))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/events/42", nil)
		router.ServeHTTP(httptest.NewRecorder(), r)
	}

	req.Equal(2, handler.calls)
}

type unavailableStore struct{}

func (unavailableStore) Get(string) ([]byte, error) {
	return nil, errors.ErrStoreUnavailable
}

func (unavailableStore) SetWithTTL(string, []byte, time.Duration) error {
	return errors.ErrStoreUnavailable
}

func (unavailableStore) Delete(string) error { return errors.ErrStoreUnavailable }

func (unavailableStore) DeletePrefix(string) (int, error) { return 0, errors.ErrStoreUnavailable }

func (unavailableStore) ScanPrefix(string) ([]repositories.KeyValuePair, error) {
	return nil, errors.ErrStoreUnavailable
}

func TestCache_Store_Trouble_Degrades_To_Pass_Through(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	c := New(unavailableStore{}, slog.Default())
	router := mux.NewRouter()
	router.Handle("/api/events/{id}", c.Middleware(ModelKey("event", "id"), 0)(handler)).Methods(http.MethodGet)

	first := get(router, "/api/events/42", nil)
	second := get(router, "/api/events/42", nil)

	// Every request reaches the handler and succeeds anyway
	req.Equal(2, handler.calls)
	req.Equal(http.StatusOK, first.Code)
	req.Equal(http.StatusOK, second.Code)
}

func TestCache_Entries_Expire_After_The_TTL(t *testing.T) {
	req := require.New(t)
	handler := &countingHandler{}
	router := newEventRouter(t, handler, time.Second)

	get(router, "/api/events/42", nil)
	get(router, "/api/events/42", nil)
	req.Equal(1, handler.calls)

	time.Sleep(2100 * time.Millisecond)

	get(router, "/api/events/42", nil)
	req.Equal(2, handler.calls)
}
