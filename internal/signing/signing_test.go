package signing

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func testVerifier() *Verifier {
	return NewVerifier("hookmarket", "1", big.NewInt(1337), common.HexToAddress("0x1111111111111111111111111111111111111111"))
}

func TestQuoteSignAndRecoverRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(priv.PublicKey)

	v := testVerifier()
	msg := QuoteMessage{WorkOrderId: "wo_1", Price: "9.5000", EtaMinutes: 30, ValidUntil: 1700000000}
	sig, err := v.SignQuote(msg, priv)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	got, err := v.RecoverQuoteSigner(msg, sig)
	require.NoError(t, err)
	require.True(t, SameAddress(got.Hex(), want.Hex()))
}

func TestSubmissionSignatureDoesNotRecoverUnderTamperedMessage(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(priv.PublicKey)

	v := testVerifier()
	hash := ArtifactHash("https://example.com/repo", "deadbeef")
	msg := SubmissionMessage{WorkOrderId: "wo_1", RepoUrl: "https://example.com/repo", CommitSha: "deadbeef", ArtifactHash: hash}
	sig, err := v.SignSubmission(msg, priv)
	require.NoError(t, err)

	tampered := msg
	tampered.CommitSha = "cafebabe"
	got, err := v.RecoverSubmissionSigner(tampered, sig)
	require.NoError(t, err)
	require.False(t, SameAddress(got.Hex(), want.Hex()))
}

func TestChallengeSignAndRecover(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(priv.PublicKey)

	v := testVerifier()
	msg := ChallengeMessage{WorkOrderId: "wo_1", SubmissionId: "sub_1", ReproductionHash: ReproductionHash(ReproductionSpec{"reason": "x"})}
	sig, err := v.SignChallenge(msg, priv)
	require.NoError(t, err)

	got, err := v.RecoverChallengeSigner(msg, sig)
	require.NoError(t, err)
	require.True(t, SameAddress(got.Hex(), want.Hex()))
}

func TestRecoverRejectsShortSignature(t *testing.T) {
	v := testVerifier()
	_, err := v.RecoverQuoteSigner(QuoteMessage{WorkOrderId: "wo_1"}, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestSameAddressCaseInsensitive(t *testing.T) {
	require.True(t, SameAddress("0xABCdef", "0xabcDEF"))
	require.False(t, SameAddress("0xABCdef", "0x000000"))
}

func TestReproductionSpecSerializeIsSortedAndDeterministic(t *testing.T) {
	s1 := ReproductionSpec{"b": "2", "a": "1"}
	s2 := ReproductionSpec{"a": "1", "b": "2"}
	require.Equal(t, "a=1&b=2", s1.Serialize())
	require.Equal(t, s1.Serialize(), s2.Serialize())
	require.Equal(t, ReproductionHash(s1), ReproductionHash(s2))
}

func TestArtifactHashDeterministic(t *testing.T) {
	h1 := ArtifactHash("repo", "sha")
	h2 := ArtifactHash("repo", "sha")
	require.Equal(t, h1, h2)
	h3 := ArtifactHash("repo", "other-sha")
	require.NotEqual(t, h1, h3)
}
