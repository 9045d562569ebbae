// Package logging wires logrus as the process logger: the line formatter, rotating file
// output, log directory retention and the Gin access-log and recovery middleware.
package logging

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/googler-dev/googler-web/internal/util"
	log "github.com/sirupsen/logrus"
)

const skipGinLogKey = "__gin_skip_request_logging__"

// GinLogrusLogger returns a Gin middleware that writes one access-log line per request.
// Requests whose path is in trackedPaths get a request ID that is stored on the Gin context
// and on the request context, so every log line of that request carries it. Sensitive query
// values (code, state, tokens) are masked.
//
// Output: [2026-01-02 15:04:05] [a1b2c3d4] [info ] 302 |       41ms |       127.0.0.1 | GET     "/google/callback?code=4%2F0A...GhIj&state=abcd...6789"
func GinLogrusLogger(trackedPaths ...string) gin.HandlerFunc {
	tracked := make(map[string]struct{}, len(trackedPaths))
	for _, p := range trackedPaths {
		tracked[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := util.MaskSensitiveQuery(c.Request.URL.RawQuery)

		requestID := ""
		if _, ok := tracked[path]; ok {
			requestID = GenerateRequestID()
			SetGinRequestID(c, requestID)
			c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		}

		c.Next()

		if shouldSkipGinRequestLogging(c) {
			return
		}
		if query != "" {
			path += "?" + query
		}

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		} else {
			latency = latency.Truncate(time.Millisecond)
		}

		statusCode := c.Writer.Status()
		line := fmt.Sprintf("%3d | %10v | %15s | %-7s \"%s\"", statusCode, latency, c.ClientIP(), c.Request.Method, path)
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			line += " | " + errorMessage
		}

		entry := log.NewEntry(log.StandardLogger())
		if requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(line)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(line)
		default:
			entry.Info(line)
		}
	}
}

// GinLogrusRecovery returns a Gin middleware that recovers from panics, logs them with the
// stack trace and answers 500.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			// net/http aborts the connection quietly for this sentinel.
			panic(http.ErrAbortHandler)
		}

		log.WithFields(log.Fields{
			"panic":      recovered,
			"stack":      string(debug.Stack()),
			"route":      c.Request.URL.Path,
			"request_id": GetGinRequestID(c),
		}).Error("recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// SkipGinRequestLogging marks c so that GinLogrusLogger does not log it.
func SkipGinRequestLogging(c *gin.Context) {
	if c == nil {
		return
	}
	c.Set(skipGinLogKey, true)
}

func shouldSkipGinRequestLogging(c *gin.Context) bool {
	if c == nil {
		return false
	}
	return c.GetBool(skipGinLogKey)
}
