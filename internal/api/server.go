// Package api implements the HTTP and WebSocket surface of spec §4.9/§6: a
// thin translator that parses requests, calls the engine, and serializes
// results. The router is grounded on 0g-sandbox-billing's cmd/billing/main.go
// (gin.New() + gin.Recovery() + route groups); JSON response/error shapes
// and the swagger mount follow OSPay's pkg/api handlers.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/config"
	"github.com/oxzoid/hookmarket/internal/engine"
	"github.com/oxzoid/hookmarket/internal/eventbus"
	"github.com/oxzoid/hookmarket/internal/store"
)

// Server holds the dependencies every handler group needs.
type Server struct {
	engine *engine.Engine
	store  store.Store
	bus    *eventbus.Bus
	cfg    *config.Config
	log    *zap.Logger

	metrics metricsCounters

	idemMu     sync.Mutex
	idempotent map[string]string
}

func NewServer(eng *engine.Engine, st store.Store, bus *eventbus.Bus, cfg *config.Config, log *zap.Logger) *Server {
	return &Server{
		engine:     eng,
		store:      st,
		bus:        bus,
		cfg:        cfg,
		log:        log,
		idempotent: make(map[string]string),
	}
}

// Router builds the gin.Engine implementing spec §6's HTTP route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/config", s.handleConfig)
	r.GET("/debug/metrics", s.handleDebugMetrics)
	r.GET("/swagger/*any", gin.WrapH(httpSwagger.WrapHandler))

	r.GET("/solvers", s.handleListSolvers)
	r.GET("/solvers/:address", s.handleGetSolver)

	workOrders := r.Group("/work-orders", apiKeyAuth("requester", s.cfg.Auth.RequesterKeys))
	workOrders.GET("", s.handleListWorkOrders)
	workOrders.POST("", s.handleCreateWorkOrder)
	workOrders.GET("/:id", s.handleGetWorkOrder)
	workOrders.GET("/:id/quotes", s.handleListQuotes)
	workOrders.GET("/:id/submissions", s.handleListSubmissions)
	workOrders.GET("/:id/verification", s.handleGetVerification)
	workOrders.GET("/:id/payments", s.handleListPayments)
	workOrders.POST("/:id/select", s.handleSelectQuote)
	workOrders.POST("/:id/submit", s.handleSubmit)
	workOrders.POST("/:id/end-session", s.handleEndSession)
	workOrders.GET("/:id/ws", s.handleWorkOrderWS)

	solver := r.Group("/solver", apiKeyAuth("solver", s.cfg.Auth.SolverKeys))
	solver.POST("/quotes", s.handleSubmitQuote)
	solver.POST("/submissions", s.handleSolverSubmission)
	solver.GET("/work-orders", s.handleSolverWorkOrders)

	challenger := r.Group("/challenger", apiKeyAuth("challenger", s.cfg.Auth.ChallengerKeys))
	challenger.POST("/challenges", s.handleSubmitChallenge)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"assetMode":          s.cfg.Asset.Mode,
		"assetAddress":       s.cfg.Asset.AssetAddress,
		"chainId":            s.cfg.Asset.ChainId,
		"contractAddress":    s.cfg.Asset.ContractAddress,
		"milestoneSplits":    s.cfg.Challenge.MilestoneSplits,
		"demoActionsEnabled": s.cfg.Demo.ActionsEnabled,
		"windows": gin.H{
			"biddingMs":   s.cfg.Windows.BiddingMs,
			"deliveryMs":  s.cfg.Windows.DeliveryMs,
			"verifyMs":    s.cfg.Windows.VerifyMs,
			"challengeMs": s.cfg.Windows.ChallengeMs,
			"patchMs":     s.cfg.Windows.PatchMs,
		},
	})
}
