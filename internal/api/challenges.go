package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oxzoid/hookmarket/internal/engine"
	"github.com/oxzoid/hookmarket/internal/signing"
)

type submitChallengeReq struct {
	WorkOrderId       string                   `json:"workOrderId"`
	SubmissionId      string                   `json:"submissionId"`
	ChallengerAddress string                   `json:"challengerAddress"`
	ReproductionSpec  signing.ReproductionSpec `json:"reproductionSpec"`
	Signature         string                   `json:"signature"`
}

// handleSubmitChallenge implements `POST /challenger/challenges`.
func (s *Server) handleSubmitChallenge(c *gin.Context) {
	var req submitChallengeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json", "details": err.Error()})
		return
	}

	sig, err := decodeHexSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature_encoding", "details": err.Error()})
		return
	}

	wo, err := s.engine.SubmitChallenge(c.Request.Context(), engine.SubmitChallengeInput{
		WorkOrderId:       req.WorkOrderId,
		SubmissionId:      req.SubmissionId,
		ChallengerAddress: req.ChallengerAddress,
		ReproductionSpec:  req.ReproductionSpec,
		Signature:         sig,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	s.metrics.challengesSubmitted.Add(1)
	c.JSON(http.StatusOK, wo)
}
