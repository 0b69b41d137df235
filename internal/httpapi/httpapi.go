// Package httpapi implements §4.7 HTTP / SSE edge on top of gin, replacing
// the teacher's Caddy-middleware wrapping (durablestreams.Handler,
// ServeHTTP) with a standalone router — this broker is a process, not a
// plugin hosted by someone else's server.
package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
)

// httpError is the edge's only error type: every handler either succeeds
// or returns one of these, which writeError renders as
// {"error": message}. Adapted from the teacher's handler.go httpError.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func newHTTPError(status int, message string) *httpError {
	return &httpError{status: status, message: message}
}

// NewRouter builds the gin engine serving §4.7's routes plus /healthz.
func NewRouter(mgr *manager.StreamManager, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog(log))
	r.Use(cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/agents/*path", func(c *gin.Context) { handleAppend(c, mgr) })
	r.GET("/agents/*path", func(c *gin.Context) { handleSubscribe(c, mgr, log) })
	r.OPTIONS("/agents/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// extractPath implements §4.7 "Path extraction": everything after
// /agents/ up to ?, URL-decoded segment-by-segment. gin's wildcard already
// strips the query string and gives us the leading slash; we only need to
// trim it and decode.
func extractPath(c *gin.Context) (eventlog.StreamPath, error) {
	raw := strings.TrimPrefix(c.Param("path"), "/")
	segments := strings.Split(raw, "/")
	for i, seg := range segments {
		decoded, err := decodeSegment(seg)
		if err != nil {
			return "", newHTTPError(http.StatusBadRequest, "invalid path segment: "+err.Error())
		}
		segments[i] = decoded
	}
	path := eventlog.StreamPath(strings.Join(segments, "/"))
	if err := path.Validate(); err != nil {
		return "", newHTTPError(http.StatusBadRequest, err.Error())
	}
	return path, nil
}

func decodeSegment(seg string) (string, error) {
	u, err := (&url.URL{Path: seg}).Parse("")
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

func writeError(c *gin.Context, err error) {
	if he, ok := err.(*httpError); ok {
		c.JSON(he.status, gin.H{"error": he.message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
