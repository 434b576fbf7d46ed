package middlewares

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"ticketdesk/metrics"
)

// RequestLogger logs every request at debug level and records it in the
// request metrics under the given server label.
func RequestLogger(logger *log.Logger, server string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"addr", c.ClientIP())

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.Requests.WithLabelValues(server, route, c.Request.Method, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(server, route).Observe(elapsed.Seconds())

		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		logger.Debug("response",
			"status", fmt.Sprintf("%d %s", status, http.StatusText(status)),
			"bytes", humanize.Bytes(uint64(size)), //nolint:gosec
			"time", elapsed)
		for _, err := range c.Errors {
			logger.Error("handler error", "path", c.Request.URL.Path, "err", err.Err)
		}
	}
}
