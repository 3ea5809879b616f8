package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinicflow/waittime/pkg/common/middleware"
	"github.com/clinicflow/waittime/pkg/gateway/httpclient"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstreamCall struct {
	method, path, query, body, requestID string
}

func upstream(t *testing.T, name string, calls chan<- upstreamCall) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls <- upstreamCall{
			method:    r.Method,
			path:      r.URL.Path,
			query:     r.URL.RawQuery,
			body:      string(body),
			requestID: r.Header.Get(middleware.RequestIDHeader),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", name)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRegisterRoutesForwardsToOwningService(t *testing.T) {
	servingCalls := make(chan upstreamCall, 4)
	trainingCalls := make(chan upstreamCall, 4)
	servingSrv := upstream(t, "serving", servingCalls)
	trainingSrv := upstream(t, "training", trainingCalls)

	client := httpclient.New(2 * time.Second)
	router := mux.NewRouter()
	RegisterRoutes(router.PathPrefix("/api/v1").Subrouter(),
		NewProxy("serving", servingSrv.URL, client, time.Second),
		NewProxy("training", trainingSrv.URL+"/", client, time.Second))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{"arrival_hour":14}`))
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "serving", rec.Header().Get("X-Upstream"))
	call := <-servingCalls
	assert.Equal(t, upstreamCall{method: http.MethodPost, path: "/api/v1/predict", body: `{"arrival_hour":14}`, requestID: "req-1"}, call)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/training/jobs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	call = <-trainingCalls
	assert.Equal(t, "/api/v1/training/jobs", call.path)
	assert.Equal(t, "limit=5", call.query)
	assert.NotEmpty(t, call.requestID)
}

func TestProxyReportsUnavailableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	proxy := NewProxy("serving", dead.URL, httpclient.New(time.Second), time.Second)
	proxy.Attempts = 2
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/model", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
