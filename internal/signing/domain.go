// Package signing implements the SignatureVerifier of spec §4.3: three
// EIP-712 typed message schemas (Quote, Submission, Challenge) under a
// fixed domain, each recovering a signer address from a 65-byte secp256k1
// signature. The struct-hash / domain-separator construction follows
// 0gfoundation-0g-sandbox-billing/internal/voucher/eip712.go (ABI-style
// padded field encoding, keccak256, the "0x1901" EIP-191 prefix), adapted
// from one fixed voucher struct to three tagged variants over a shared
// domain, and signer recovery is done with go-ethereum's crypto package as
// OSPay's blockchain.VerifyBSCUSDTransfer does for Transfer-log lookups.
package signing

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var errBadSignatureLength = errors.New("signing: signature must be 65 bytes")

// Domain is the fixed EIP-712 domain every message schema signs under.
type Domain struct {
	Name              string
	Version           string
	ChainId           *big.Int
	VerifyingContract common.Address
}

func (d Domain) separator() [32]byte {
	domainTypeHash := crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], nameHash[:])
	copy(encoded[64:96], versionHash[:])
	d.ChainId.FillBytes(encoded[96:128])
	copy(encoded[140:160], d.VerifyingContract.Bytes())

	return crypto.Keccak256Hash(encoded)
}

// digest assembles the final EIP-191/712 digest: keccak256(0x1901 || domainSeparator || structHash).
func digest(d Domain, structHash [32]byte) [32]byte {
	sep := d.separator()
	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

// sign produces a 65-byte [R || S || V] signature with V normalized to 27/28.
func sign(d Domain, structHash [32]byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	dig := digest(d, structHash)
	sig, err := crypto.Sign(dig[:], priv)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// recover returns the address that produced sig over structHash under domain d.
func recover(d Domain, structHash [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errBadSignatureLength
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	dig := digest(d, structHash)
	pub, err := crypto.SigToPub(dig[:], normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
