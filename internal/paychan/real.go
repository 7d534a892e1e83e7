package paychan

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/apierr"
	"github.com/oxzoid/hookmarket/internal/domain"
	"github.com/oxzoid/hookmarket/internal/money"
)

// Real talks to an external session RPC service, signing every state
// submission with an ecdsa key the way
// 0gfoundation-0g-sandbox-billing/internal/billing/signer.go signs vouchers
// before handing them off. The billing signer enqueues onto Redis for an
// async settler; spec §4.5's transfer/closeSession are synchronous RPCs
// instead, so the queue is replaced by a direct HTTP POST. No version is
// fetched from the service before the first write; session.Manager.EnsureSession
// is idempotent only by returning the session already stored on the work order.
type Real struct {
	baseURL    string
	httpClient *http.Client
	priv       *ecdsa.PrivateKey
	log        *zap.Logger
}

func NewReal(baseURL string, priv *ecdsa.PrivateKey, log *zap.Logger) *Real {
	return &Real{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		priv:       priv,
		log:        log,
	}
}

type createSessionRequest struct {
	WorkOrderId    string   `json:"workOrderId"`
	AllowanceTotal string   `json:"allowanceTotal"`
	Requester      string   `json:"requester"`
	Solvers        []string `json:"solvers"`
}

type transferRequest struct {
	WorkOrderId    string               `json:"workOrderId"`
	EventId        string               `json:"eventId"`
	ToAddress      string               `json:"toAddress"`
	Amount         string               `json:"amount"`
	AllowanceTotal string               `json:"allowanceTotal"`
	PriorState     domain.SessionHandle `json:"priorState"`
}

type closeRequest struct {
	WorkOrderId string               `json:"workOrderId"`
	State       domain.SessionHandle `json:"state"`
}

func (r *Real) CreateSession(ctx context.Context, workOrderId string, allowanceTotal money.Amount, requester string, solvers []string) (domain.SessionHandle, error) {
	var state domain.SessionHandle
	err := r.post(ctx, "/sessions", createSessionRequest{
		WorkOrderId:    workOrderId,
		AllowanceTotal: allowanceTotal.String(),
		Requester:      requester,
		Solvers:        solvers,
	}, &state)
	if err != nil {
		return domain.SessionHandle{}, apierr.Adapter(err)
	}
	return state, nil
}

func (r *Real) Transfer(ctx context.Context, workOrderId string, event TransferEvent, state domain.SessionHandle, allowanceTotal money.Amount) (TransferResult, error) {
	req := transferRequest{
		WorkOrderId:    workOrderId,
		EventId:        event.Id,
		ToAddress:      event.ToAddress,
		Amount:         event.Amount.String(),
		AllowanceTotal: allowanceTotal.String(),
		PriorState:     state,
	}

	var result TransferResult
	err := r.postWithRetry(ctx, "/sessions/transfer", req, &result)
	if err != nil {
		if isInsufficientAllowance(err) {
			return TransferResult{}, apierr.InsufficientAllowance(err.Error())
		}
		return TransferResult{}, apierr.Adapter(err)
	}
	return result, nil
}

func (r *Real) Close(ctx context.Context, workOrderId string, state domain.SessionHandle) (CloseResult, error) {
	var result CloseResult
	err := r.postWithRetry(ctx, "/sessions/close", closeRequest{WorkOrderId: workOrderId, State: state}, &result)
	if err != nil {
		return CloseResult{}, apierr.Adapter(err)
	}
	return result, nil
}

// postWithRetry retries a single time after any failed first attempt,
// whether a transport error or a non-2xx response; it does not distinguish
// transient failures from permanent ones.
func (r *Real) postWithRetry(ctx context.Context, path string, body, out any) error {
	err := r.post(ctx, path, body, out)
	if err == nil {
		return nil
	}
	if r.log != nil {
		r.log.Warn("paychan: real adapter request failed, retrying once",
			zap.String("path", path), zap.Error(err))
	}
	return r.post(ctx, path, body, out)
}

// signedEnvelope wraps every outgoing request with a signature over the
// exact payload bytes, the way voucher.Sign attaches a signature to the
// struct before it is queued in
// 0gfoundation-0g-sandbox-billing/internal/voucher/eip712.go; the envelope
// stands in for that struct field since post() marshals an arbitrary body.
type signedEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	Signer    string          `json:"signer"`
	Signature string          `json:"signature"`
}

func (r *Real) sign(payload []byte) (signer, signature string, err error) {
	digest := crypto.Keccak256Hash(payload)
	sig, err := crypto.Sign(digest.Bytes(), r.priv)
	if err != nil {
		return "", "", err
	}
	sig[64] += 27
	return crypto.PubkeyToAddress(r.priv.PublicKey).Hex(), "0x" + hex.EncodeToString(sig), nil
}

func (r *Real) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	signer, signature, err := r.sign(payload)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	envelope, err := json.Marshal(signedEnvelope{Payload: payload, Signer: signer, Signature: signature})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(envelope))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("session service %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func isInsufficientAllowance(err error) bool {
	return err != nil && len(err.Error()) > 0 && bytes.Contains([]byte(err.Error()), []byte("insufficient"))
}
