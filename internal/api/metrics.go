package api

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// metricsCounters mirrors OSPay's DebugMetricsHandler (pkg/api/events.go):
// plain in-process operational counters exposed for debugging, not a
// reputation or scoring feature.
type metricsCounters struct {
	workOrdersCreated   atomic.Int64
	quotesSubmitted     atomic.Int64
	submissionsReceived atomic.Int64
	challengesSubmitted atomic.Int64
}

func (s *Server) handleDebugMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workOrdersCreated":   s.metrics.workOrdersCreated.Load(),
		"quotesSubmitted":     s.metrics.quotesSubmitted.Load(),
		"submissionsReceived": s.metrics.submissionsReceived.Load(),
		"challengesSubmitted": s.metrics.challengesSubmitted.Load(),
	})
}
