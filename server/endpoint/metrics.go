package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const mb = 1 << 20

// Metrics returns a handler that reports process-level runtime metrics:
// goroutine count and memory usage. Pipeline metrics flow through the
// OpenTelemetry meter instead.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       m.Alloc / mb,
				"total_alloc_mb": m.TotalAlloc / mb,
				"sys_mb":         m.Sys / mb,
				"gc_runs":        m.NumGC,
			},
		})
	}
}
