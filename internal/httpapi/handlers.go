package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/stream"
)

// handleAppend implements §4.7 POST /agents/<path>: decode an EventInput,
// 400 on decode failure, 204 (no body) on success.
func handleAppend(c *gin.Context, mgr *manager.StreamManager) {
	path, err := extractPath(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var input eventlog.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, newHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	if _, err := mgr.Append(c.Request.Context(), path, input); err != nil {
		writeError(c, newHTTPError(http.StatusBadRequest, err.Error()))
		return
	}

	c.Status(http.StatusNoContent)
}

// handleSubscribe implements §4.7 GET /agents/<path>: an SSE response
// replaying history from an optional ?offset=, followed by live events
// unless ?live=true asks to skip straight to the tail. Grounded on the
// teacher's handleSSE: text/event-stream + no-cache + keep-alive headers,
// an http.Flusher check, one "event: data" frame per record.
func handleSubscribe(c *gin.Context, mgr *manager.StreamManager, log *zap.Logger) {
	path, err := extractPath(c)
	if err != nil {
		writeError(c, err)
		return
	}

	opts := manager.SubscribeOptions{Path: path, From: eventlog.NoOffset, Mode: stream.BoundedDrop}
	if raw := c.Query("offset"); raw != "" {
		off, err := eventlog.ParseOffset(raw)
		if err != nil {
			writeError(c, newHTTPError(http.StatusBadRequest, "invalid offset: "+err.Error()))
			return
		}
		opts.From = off
	}
	if c.Query("live") == "true" {
		opts.LiveOnly = true
	}

	ctx := c.Request.Context()
	events, closeSub, err := mgr.Subscribe(ctx, opts)
	if err != nil {
		writeError(c, newHTTPError(http.StatusInternalServerError, err.Error()))
		return
	}
	defer closeSub()

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(c, newHTTPError(http.StatusInternalServerError, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			body, err := json.Marshal(ev)
			if err != nil {
				if log != nil {
					log.Error("httpapi: encode event for sse", zap.Error(err))
				}
				continue
			}
			if _, err := w.Write([]byte("event: data\ndata: " + string(body) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
