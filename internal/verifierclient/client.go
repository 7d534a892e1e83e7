// Package verifierclient implements the HTTP client side of the external
// verifier contract (spec §6): POST /verify and POST /challenge. The
// engine treats both responses as opaque payloads it persists and branches
// on, never interpreting the verifier's internal logic.
package verifierclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oxzoid/hookmarket/internal/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type verifyRequest struct {
	WorkOrder  domain.WorkOrder  `json:"workOrder"`
	Submission domain.Submission `json:"submission"`
}

// VerifyResponse is the verifier's opaque pass/fail judgment for a submission.
type VerifyResponse struct {
	Report           domain.VerificationReport `json:"report"`
	MilestonesPassed []string                  `json:"milestonesPassed"`
}

// Verify calls POST /verify synchronously, per spec §4.7 step 4
// ("calls the external verifier synchronously"). Any transport or non-2xx
// response is returned as-is for the engine to treat as a verifier error.
func (c *Client) Verify(ctx context.Context, wo domain.WorkOrder, sub domain.Submission) (VerifyResponse, error) {
	var resp VerifyResponse
	err := c.post(ctx, "/verify", verifyRequest{WorkOrder: wo, Submission: sub}, &resp)
	return resp, err
}

type challengeRequest struct {
	WorkOrder  domain.WorkOrder  `json:"workOrder"`
	Submission domain.Submission `json:"submission"`
	Challenge  domain.Challenge  `json:"challenge"`
}

// ChallengeOutcome is SUCCESS or REJECTED, spec §4.7 step 5.
type ChallengeOutcome string

const (
	ChallengeSuccess  ChallengeOutcome = "SUCCESS"
	ChallengeRejected ChallengeOutcome = "REJECTED"
)

type challengeResponse struct {
	Outcome ChallengeOutcome `json:"outcome"`
}

// Challenge calls POST /challenge synchronously.
func (c *Client) Challenge(ctx context.Context, wo domain.WorkOrder, sub domain.Submission, ch domain.Challenge) (ChallengeOutcome, error) {
	var resp challengeResponse
	err := c.post(ctx, "/challenge", challengeRequest{WorkOrder: wo, Submission: sub, Challenge: ch}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Outcome, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verifier %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("verifier %s: read body: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("verifier %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, out)
}
