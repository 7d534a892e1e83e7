package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/engine"
	"github.com/oxzoid/hookmarket/internal/reputation"
	"github.com/oxzoid/hookmarket/internal/signing"
)

// solverView adds the derived reputation score to the persisted stats row
// (spec §4.4); reputation is never stored, only computed on read.
type solverView struct {
	domain.SolverStats
	Reputation float64 `json:"reputation"`
}

func withReputation(st domain.SolverStats) solverView {
	return solverView{SolverStats: st, Reputation: reputation.Score(st)}
}

func (s *Server) handleListSolvers(c *gin.Context) {
	all, err := s.store.ListSolverStats(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	views := make([]solverView, len(all))
	for i, st := range all {
		views[i] = withReputation(st)
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetSolver(c *gin.Context) {
	st, err := s.store.GetSolverStats(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, withReputation(st))
}

// handleSolverWorkOrders implements `GET /solver/work-orders?status=`. An
// optional solverAddress query filters to work orders the solver has quoted
// on or been selected for; without it the full status-filtered list is
// returned, the same list GET /work-orders gives for that status.
func (s *Server) handleSolverWorkOrders(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := s.store.ListWorkOrders(ctx, c.Query("status"))
	if err != nil {
		respondErr(c, err)
		return
	}

	solverAddr := c.Query("solverAddress")
	if solverAddr == "" {
		c.JSON(http.StatusOK, list)
		return
	}

	filtered := make([]domain.WorkOrder, 0, len(list))
	for _, wo := range list {
		if signing.SameAddress(wo.Selection.SelectedSolverId, solverAddr) {
			filtered = append(filtered, wo)
			continue
		}
		quotes, err := s.store.ListQuotes(ctx, wo.Id)
		if err != nil {
			respondErr(c, err)
			return
		}
		for _, q := range quotes {
			if signing.SameAddress(q.SolverAddr, solverAddr) {
				filtered = append(filtered, wo)
				break
			}
		}
	}
	c.JSON(http.StatusOK, filtered)
}

type submitQuoteReq struct {
	WorkOrderId   string    `json:"workOrderId"`
	SolverAddress string    `json:"solverAddress"`
	Price         string    `json:"price"`
	EtaMinutes    int64     `json:"etaMinutes"`
	ValidUntil    time.Time `json:"validUntil"`
	Signature     string    `json:"signature"`
}

// handleSubmitQuote implements `POST /solver/quotes`.
func (s *Server) handleSubmitQuote(c *gin.Context) {
	var req submitQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json", "details": err.Error()})
		return
	}

	sig, err := decodeHexSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature_encoding", "details": err.Error()})
		return
	}

	q, err := s.engine.SubmitQuote(c.Request.Context(), engine.SubmitQuoteInput{
		WorkOrderId: req.WorkOrderId,
		SolverAddr:  req.SolverAddress,
		Price:       req.Price,
		EtaMinutes:  req.EtaMinutes,
		ValidUntil:  req.ValidUntil,
		Signature:   sig,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	s.metrics.quotesSubmitted.Add(1)
	c.JSON(http.StatusCreated, q)
}
