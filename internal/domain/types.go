// Package domain holds the persisted record types of the work-order
// marketplace (spec §3). These are plain structs; all mutation goes
// through internal/engine and internal/session, never directly.
package domain

import "time"

// WorkOrderStatus is the top-level lifecycle state of a work order.
type WorkOrderStatus string

const (
	StatusDraft                    WorkOrderStatus = "DRAFT"
	StatusBidding                  WorkOrderStatus = "BIDDING"
	StatusSelected                 WorkOrderStatus = "SELECTED"
	StatusVerifying                WorkOrderStatus = "VERIFYING"
	StatusPassedPendingChallenge   WorkOrderStatus = "PASSED_PENDING_CHALLENGE"
	StatusChallenged               WorkOrderStatus = "CHALLENGED"
	StatusCompleted                WorkOrderStatus = "COMPLETED"
	StatusFailed                   WorkOrderStatus = "FAILED"
	StatusExpired                  WorkOrderStatus = "EXPIRED"
)

// ChallengeStatus is the challenge sub-state machine nested inside a work order.
type ChallengeStatus string

const (
	ChallengeNone        ChallengeStatus = "NONE"
	ChallengeOpen        ChallengeStatus = "OPEN"
	ChallengeRejected    ChallengeStatus = "REJECTED"
	ChallengePatchWindow ChallengeStatus = "PATCH_WINDOW"
	ChallengePatchPassed ChallengeStatus = "PATCH_PASSED"
	ChallengePatchFailed ChallengeStatus = "PATCH_FAILED"
)

// Bounty is the reward posted for the work order.
type Bounty struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// Deadlines is the deadline vector of spec §3.
type Deadlines struct {
	BiddingEndsAt  *time.Time `json:"biddingEndsAt,omitempty"`
	DeliveryEndsAt *time.Time `json:"deliveryEndsAt,omitempty"`
	VerifyEndsAt   *time.Time `json:"verifyEndsAt,omitempty"`
	ChallengeEndsAt *time.Time `json:"challengeEndsAt,omitempty"`
	PatchEndsAt    *time.Time `json:"patchEndsAt,omitempty"`
}

// Selection tracks the currently (or most recently) selected quote.
type Selection struct {
	SelectedQuoteId   string     `json:"selectedQuoteId,omitempty"`
	SelectedSolverId  string     `json:"selectedSolverId,omitempty"`
	SelectedAt        *time.Time `json:"selectedAt,omitempty"`
	AttemptedQuoteIds []string   `json:"attemptedQuoteIds,omitempty"`
}

// Challenge is the nested challenge/patch sub-state of spec §3.
type Challenge struct {
	Status              ChallengeStatus `json:"status"`
	ChallengeId         string          `json:"challengeId,omitempty"`
	ChallengerAddress   string          `json:"challengerAddress,omitempty"`
	PendingRewardAmount string          `json:"pendingRewardAmount,omitempty"`
}

// Allocation is a single participant's balance within a session.
type Allocation struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

// SessionHandle is the work order's view onto its payment-channel session.
type SessionHandle struct {
	SessionId      string       `json:"sessionId,omitempty"`
	AssetAddress   string       `json:"assetAddress,omitempty"`
	AllowanceTotal string       `json:"allowanceTotal,omitempty"`
	Participants   []string     `json:"participants,omitempty"`
	Allocations    []Allocation `json:"allocations,omitempty"`
	SessionVersion uint64       `json:"sessionVersion"`
}

// PayoutEntry is one named fraction of the base price (spec §4.7 milestone payouts).
type PayoutEntry struct {
	Key     string `json:"key"`
	Percent int    `json:"percent"`
}

// Default payout schedule. M5 is the terminal no-challenge/patch-ok holdback
// and is never split (spec §4.7).
var DefaultPayoutSchedule = []PayoutEntry{
	{Key: "M1_COMPILE_OK", Percent: 20},
	{Key: "M2_TESTS_OK", Percent: 20},
	{Key: "M3_DEPLOY_OK", Percent: 20},
	{Key: "M4_V4_POOL_PROOF_OK", Percent: 20},
	{Key: "M5_NO_CHALLENGE_OR_PATCH_OK", Percent: 20},
}

// IsTerminalMilestone, given a payout schedule's key, returns whether that
// milestone is the terminal settlement holdback (never split per spec §4.7).
func IsTerminalMilestone(key string) bool {
	return key == "M5_NO_CHALLENGE_OR_PATCH_OK"
}

// WorkOrder is the central aggregate of the marketplace (spec §3).
type WorkOrder struct {
	Id             string            `json:"id"`
	CreatedAt      time.Time         `json:"createdAt"`
	Title          string            `json:"title"`
	TemplateType   string            `json:"templateType"`
	Params         map[string]any    `json:"params"`
	Bounty         Bounty            `json:"bounty"`
	RequesterAddr  string            `json:"requesterAddress,omitempty"`
	Status         WorkOrderStatus   `json:"status"`
	Deadlines      Deadlines         `json:"deadlines"`
	Selection      Selection         `json:"selection"`
	Challenge      Challenge         `json:"challenge"`
	Session        SessionHandle     `json:"session"`
	PayoutSchedule []PayoutEntry     `json:"payoutSchedule"`
	ReportId       string            `json:"verificationReportId,omitempty"`
	SettlementTxId string            `json:"settlementTxId,omitempty"`
	ExpiredReason  string            `json:"expiredReason,omitempty"`
}

// Quote is a solver's signed bid (spec §3). Immutable after insert.
type Quote struct {
	Id           string    `json:"id"`
	WorkOrderId  string    `json:"workOrderId"`
	SolverAddr   string    `json:"solverAddress"`
	Price        string    `json:"price"`
	EtaMinutes   int       `json:"etaMinutes"`
	ValidUntil   time.Time `json:"validUntil"`
	Signature    string    `json:"signature"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ArtifactKind enumerates the submission artifact kinds; only GIT_COMMIT exists today.
type ArtifactKind string

const ArtifactGitCommit ArtifactKind = "GIT_COMMIT"

// Artifact references the solver's delivered code.
type Artifact struct {
	Kind         ArtifactKind `json:"kind"`
	RepoUrl      string       `json:"repoUrl"`
	CommitSha    string       `json:"commitSha"`
	ArtifactHash string       `json:"artifactHash"`
}

// Submission is a signed artifact reference (spec §3). Immutable; multiple allowed per work order.
type Submission struct {
	Id          string    `json:"id"`
	WorkOrderId string    `json:"workOrderId"`
	SolverAddr  string    `json:"solverAddress"`
	Artifact    Artifact  `json:"artifact"`
	Signature   string    `json:"signature"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReportStatus is the verifier's verdict.
type ReportStatus string

const (
	ReportPass ReportStatus = "PASS"
	ReportFail ReportStatus = "FAIL"
)

// Proof is the verifier's evidence bundle.
type Proof struct {
	ChainId        int64    `json:"chainId"`
	Addresses      []string `json:"addresses"`
	PoolIdentifier string   `json:"poolIdentifier"`
	TransactionIds []string `json:"transactionIds"`
}

// VerificationReport is the persisted verdict for one submission (spec §3).
type VerificationReport struct {
	Id           string       `json:"id"`
	SubmissionId string       `json:"submissionId"`
	Status       ReportStatus `json:"status"`
	Logs         string       `json:"logs"`
	Proof        Proof        `json:"proof"`
	Metrics      map[string]any `json:"metrics"`
	ProducedAt   time.Time    `json:"producedAt"`
	ArtifactHash string       `json:"artifactHash"`
}

// PaymentEventType enumerates payment event kinds (spec §3).
type PaymentEventType string

const (
	PaymentQuoteReward     PaymentEventType = "QUOTE_REWARD"
	PaymentMilestone       PaymentEventType = "MILESTONE"
	PaymentChallengeReward PaymentEventType = "CHALLENGE_REWARD"
	PaymentRefund          PaymentEventType = "REFUND"
)

// PaymentEvent is one append-only ledger row (spec §3).
type PaymentEvent struct {
	Id           string           `json:"id"`
	WorkOrderId  string           `json:"workOrderId"`
	Type         PaymentEventType `json:"type"`
	Destination  string           `json:"destination"`
	Amount       string           `json:"amount"`
	MilestoneKey string           `json:"milestoneKey,omitempty"`
	TransferId   string           `json:"transferId"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// SolverStats is the reputation source-of-truth, keyed by lowercase address (spec §3).
type SolverStats struct {
	Address             string `json:"address"`
	QuotesSubmitted     int64  `json:"quotesSubmitted"`
	QuotesWon           int64  `json:"quotesWon"`
	DeliveriesSucceeded int64  `json:"deliveriesSucceeded"`
	DeliveriesFailed    int64  `json:"deliveriesFailed"`
	OnTimeDeliveries    int64  `json:"onTimeDeliveries"`
	TotalEtaMinutes     int64  `json:"totalEtaMinutes"`
	TotalActualMinutes  int64  `json:"totalActualMinutes"`
	ChallengesAgainst   int64  `json:"challengesAgainst"`
	ChallengesWon       int64  `json:"challengesWon"`
}

// Event is a single emitted EventBus item (spec §4.2).
type Event struct {
	Id          string    `json:"id"`
	WorkOrderId string    `json:"workOrderId"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
	Payload     any       `json:"payload"`
}
