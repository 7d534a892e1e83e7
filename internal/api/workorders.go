package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/engine"
)

type createWorkOrderReq struct {
	Title        string         `json:"title"`
	TemplateType string         `json:"templateType"`
	Params       map[string]any `json:"params"`
	Bounty       struct {
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"bounty"`
	RequesterAddress string `json:"requesterAddress"`
	IdempotencyKey   string `json:"idempotencyKey"`
}

// handleCreateWorkOrder implements spec §6 `POST /work-orders`. The
// idempotency-key handling is grounded on OSPay's order-creation pattern
// (pkg/api/orders.go CreateOrderHandler): a repeat of the same key returns
// the work order created the first time rather than creating a second one.
func (s *Server) handleCreateWorkOrder(c *gin.Context) {
	var req createWorkOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json", "details": err.Error()})
		return
	}

	if req.IdempotencyKey != "" {
		s.idemMu.Lock()
		existingId, seen := s.idempotent[req.IdempotencyKey]
		s.idemMu.Unlock()
		if seen {
			wo, err := s.store.GetWorkOrder(c.Request.Context(), existingId)
			if err == nil {
				c.JSON(http.StatusCreated, wo)
				return
			}
		}
	}

	wo, err := s.engine.CreateWorkOrder(c.Request.Context(), engine.CreateWorkOrderInput{
		Title:            req.Title,
		TemplateType:     req.TemplateType,
		Params:           req.Params,
		BountyCurrency:   req.Bounty.Currency,
		BountyAmount:     req.Bounty.Amount,
		RequesterAddress: req.RequesterAddress,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	if req.IdempotencyKey != "" {
		s.idemMu.Lock()
		s.idempotent[req.IdempotencyKey] = wo.Id
		s.idemMu.Unlock()
	}

	s.metrics.workOrdersCreated.Add(1)
	c.JSON(http.StatusCreated, wo)
}

func (s *Server) handleListWorkOrders(c *gin.Context) {
	list, err := s.store.ListWorkOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetWorkOrder(c *gin.Context) {
	wo, err := s.store.GetWorkOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (s *Server) handleListQuotes(c *gin.Context) {
	quotes, err := s.store.ListQuotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (s *Server) handleListSubmissions(c *gin.Context) {
	subs, err := s.store.ListSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// handleGetVerification returns the latest verification report for the work
// order, identified by the report id the engine stamped onto it.
func (s *Server) handleGetVerification(c *gin.Context) {
	ctx := c.Request.Context()
	wo, err := s.store.GetWorkOrder(ctx, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if wo.ReportId == "" {
		respondErr(c, apierr.NotFound("no verification report yet for this work order"))
		return
	}
	report, err := s.store.GetVerificationReport(ctx, wo.ReportId)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleListPayments(c *gin.Context) {
	events, err := s.store.ListPaymentEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type selectQuoteReq struct {
	QuoteId string `json:"quoteId"`
}

func (s *Server) handleSelectQuote(c *gin.Context) {
	var req selectQuoteReq
	_ = c.ShouldBindJSON(&req) // body is optional; an empty body auto-selects

	force := c.Query("force") == "true"
	wo, err := s.engine.SelectQuote(c.Request.Context(), c.Param("id"), req.QuoteId, force, s.cfg.Demo.ActionsEnabled)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

type submitSubmissionReq struct {
	WorkOrderId   string `json:"workOrderId"`
	SolverAddress string `json:"solverAddress"`
	RepoUrl       string `json:"repoUrl"`
	CommitSha     string `json:"commitSha"`
	ArtifactHash  string `json:"artifactHash"`
	Signature     string `json:"signature"`
}

// handleSubmit implements `POST /work-orders/:id/submit`.
func (s *Server) handleSubmit(c *gin.Context) {
	s.submitArtifact(c, c.Param("id"))
}

// handleSolverSubmission implements `POST /solver/submissions`, forwarded to
// the same engine operation per spec §6, taking the work order id from the
// body instead of the path.
func (s *Server) handleSolverSubmission(c *gin.Context) {
	s.submitArtifact(c, "")
}

func (s *Server) submitArtifact(c *gin.Context, workOrderId string) {
	var req submitSubmissionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json", "details": err.Error()})
		return
	}
	if workOrderId == "" {
		workOrderId = req.WorkOrderId
	}

	sig, err := decodeHexSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature_encoding", "details": err.Error()})
		return
	}

	wo, err := s.engine.SubmitSubmission(c.Request.Context(), engine.SubmitSubmissionInput{
		WorkOrderId:  workOrderId,
		SolverAddr:   req.SolverAddress,
		RepoUrl:      req.RepoUrl,
		CommitSha:    req.CommitSha,
		ArtifactHash: req.ArtifactHash,
		Signature:    sig,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	s.metrics.submissionsReceived.Add(1)
	c.JSON(http.StatusOK, wo)
}

func (s *Server) handleEndSession(c *gin.Context) {
	force := c.Query("force") == "true"
	wo, err := s.engine.EndSession(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}
