package logger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
	maxRequestIDLen = 64
)

// Middleware tags each request with a request_id and writes one access line per
// request once the handler chain returns. Handlers further down may replace the
// request logger with Bind; the access line uses whichever logger is bound last,
// so identity attached by auth shows up there.
//
// Routes named in quiet (gin route patterns such as the call-status poll) log
// successful requests at debug level.
func Middleware(l *slog.Logger, quiet ...string) gin.HandlerFunc {
	quietRoutes := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		quietRoutes[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		Bind(c, l.With("request_id", rid))

		c.Next()

		route := c.FullPath()
		path := route
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"route", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "appointment_id", id)
		}
		if id := c.Param("callId"); id != "" {
			attrs = append(attrs, "call_id", id)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		default:
			if _, ok := quietRoutes[route]; ok {
				level = slog.LevelDebug
			}
		}
		FromGin(c).Log(c.Request.Context(), level, "request", attrs...)
	}
}

// Bind makes l the request logger for both the gin context and the request
// context, so services called with c.Request.Context() log with it too.
func Bind(c *gin.Context, l *slog.Logger) {
	c.Set(ginLoggerKey, l)
	c.Request = c.Request.WithContext(With(c.Request.Context(), l))
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// validRequestID accepts caller-supplied ids that are short and plain enough to
// echo into headers and logs unchanged.
func validRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLen {
		return false
	}
	for _, r := range rid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}
