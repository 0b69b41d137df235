package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *manager.StreamManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mgr := manager.New(storage.NewMemoryStore(), zaptest.NewLogger(t))
	r := NewRouter(mgr, zaptest.NewLogger(t))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAppendReturnsNoContentOnSuccess(t *testing.T) {
	srv, mgr := newTestServer(t)

	resp, err := http.Post(srv.URL+"/agents/chat", "application/json",
		strings.NewReader(`{"type":"user:message:called","payload":{"content":"hi"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	events, err := mgr.Read(manager.ReadOptions{Path: "chat", From: eventlog.NoOffset})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, eventlog.EventType("user:message:called"), events[0].Type)
}

func TestAppendReturnsBadRequestOnInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/agents/chat", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubscribeStreamsAppendedEventAsSSE(t *testing.T) {
	srv, mgr := newTestServer(t)

	_, err := mgr.Append(context.Background(), "chat", eventlog.EventInput{Type: "seed", Payload: map[string]any{}})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/agents/chat", nil)
	require.NoError(t, err)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	require.Contains(t, strings.Join(lines, "\n"), `"type":"seed"`)
}
