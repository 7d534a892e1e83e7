package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Quote-type-hash matches spec §4.3: {workOrderId, price, etaMinutes, validUntil}.
var quoteTypeHash = crypto.Keccak256Hash([]byte(
	"Quote(string workOrderId,string price,uint256 etaMinutes,uint256 validUntil)",
))

// Submission-type-hash: {workOrderId, repoUrl, commitSha, artifactHash}.
var submissionTypeHash = crypto.Keccak256Hash([]byte(
	"Submission(string workOrderId,string repoUrl,string commitSha,bytes32 artifactHash)",
))

// Challenge-type-hash: {workOrderId, submissionId, reproductionHash}.
var challengeTypeHash = crypto.Keccak256Hash([]byte(
	"Challenge(string workOrderId,string submissionId,bytes32 reproductionHash)",
))

// QuoteMessage is the signed payload of a solver's bid.
type QuoteMessage struct {
	WorkOrderId string
	Price       string
	EtaMinutes  int64
	ValidUntil  int64 // unix seconds
}

func (m QuoteMessage) structHash() [32]byte {
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], quoteTypeHash[:])
	copy(encoded[32:64], crypto.Keccak256Hash([]byte(m.WorkOrderId))[:])
	copy(encoded[64:96], crypto.Keccak256Hash([]byte(m.Price))[:])
	big.NewInt(m.EtaMinutes).FillBytes(encoded[96:128])
	big.NewInt(m.ValidUntil).FillBytes(encoded[128:160])
	return crypto.Keccak256Hash(encoded)
}

// SubmissionMessage is the signed payload of a delivered artifact reference.
type SubmissionMessage struct {
	WorkOrderId  string
	RepoUrl      string
	CommitSha    string
	ArtifactHash [32]byte
}

func (m SubmissionMessage) structHash() [32]byte {
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], submissionTypeHash[:])
	copy(encoded[32:64], crypto.Keccak256Hash([]byte(m.WorkOrderId))[:])
	copy(encoded[64:96], crypto.Keccak256Hash([]byte(m.RepoUrl))[:])
	copy(encoded[96:128], crypto.Keccak256Hash([]byte(m.CommitSha))[:])
	copy(encoded[128:160], m.ArtifactHash[:])
	return crypto.Keccak256Hash(encoded)
}

// ChallengeMessage is the signed payload of a dispute.
type ChallengeMessage struct {
	WorkOrderId      string
	SubmissionId     string
	ReproductionHash [32]byte
}

func (m ChallengeMessage) structHash() [32]byte {
	encoded := make([]byte, 4*32)
	copy(encoded[0:32], challengeTypeHash[:])
	copy(encoded[32:64], crypto.Keccak256Hash([]byte(m.WorkOrderId))[:])
	copy(encoded[64:96], crypto.Keccak256Hash([]byte(m.SubmissionId))[:])
	copy(encoded[96:128], m.ReproductionHash[:])
	return crypto.Keccak256Hash(encoded)
}

// Verifier recovers signer addresses for the three message schemas under a fixed domain.
type Verifier struct {
	domain Domain
}

func NewVerifier(name, version string, chainId *big.Int, verifyingContract common.Address) *Verifier {
	return &Verifier{domain: Domain{Name: name, Version: version, ChainId: chainId, VerifyingContract: verifyingContract}}
}

func (v *Verifier) RecoverQuoteSigner(msg QuoteMessage, sig []byte) (common.Address, error) {
	return recover(v.domain, msg.structHash(), sig)
}

func (v *Verifier) RecoverSubmissionSigner(msg SubmissionMessage, sig []byte) (common.Address, error) {
	return recover(v.domain, msg.structHash(), sig)
}

func (v *Verifier) RecoverChallengeSigner(msg ChallengeMessage, sig []byte) (common.Address, error) {
	return recover(v.domain, msg.structHash(), sig)
}

// SignQuote signs msg with priv under v's domain; used by tests and by
// reference solver clients constructing fixtures, the engine never signs.
func (v *Verifier) SignQuote(msg QuoteMessage, priv *ecdsa.PrivateKey) ([]byte, error) {
	return sign(v.domain, msg.structHash(), priv)
}

func (v *Verifier) SignSubmission(msg SubmissionMessage, priv *ecdsa.PrivateKey) ([]byte, error) {
	return sign(v.domain, msg.structHash(), priv)
}

func (v *Verifier) SignChallenge(msg ChallengeMessage, priv *ecdsa.PrivateKey) ([]byte, error) {
	return sign(v.domain, msg.structHash(), priv)
}

// SameAddress compares two addresses case-insensitively, per spec §4.3
// ("the engine compares recovered address to the claimed address
// case-insensitively").
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ArtifactHash computes hash("repoUrl:commitSha") deterministically, per spec §4.3.
func ArtifactHash(repoUrl, commitSha string) [32]byte {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%s", repoUrl, commitSha)))
}

// ReproductionSpec is the challenger-supplied repro input; Serialize is the
// fixed deterministic text serialization referenced by spec §4.3, stable
// for the life of the deployment: sorted-key "k=v" pairs joined by "&".
type ReproductionSpec map[string]string

func (s ReproductionSpec) Serialize() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, s[k]))
	}
	return strings.Join(parts, "&")
}

// ReproductionHash computes hash(serialize(reproductionSpec)), per spec §4.3.
func ReproductionHash(spec ReproductionSpec) [32]byte {
	return crypto.Keccak256Hash([]byte(spec.Serialize()))
}
