// Package money implements fixed-point decimal arithmetic for monetary
// amounts that cross the API boundary as strings (see spec §4.7 "Numeric
// semantics"). Internally every amount is stored as an integer count of
// 1e-4 units ("micros") so that sums, splits, and comparisons never touch
// a floating point type. Conversion to an asset's on-chain base units
// (e.g. 18-decimal wei-style amounts) happens only at the
// PaymentChannelAdapter boundary, the way OSPay keeps amount_minor as a
// string and parses it into a big.Int only when it has to hand the value
// to the chain client.
package money

import (
	"fmt"
	"math/big"
	"strings"
)

// Scale is the number of decimal places amounts are rounded to for
// ledger/business arithmetic (milestone percentages, price comparisons).
const Scale = 4

var scaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Scale), nil)

// Amount is a fixed-point decimal value scaled by 10^Scale.
type Amount struct {
	micros *big.Int
}

// Zero is the additive identity.
func Zero() Amount { return Amount{micros: big.NewInt(0)} }

// FromMicros wraps a raw scaled integer (test/internal use).
func FromMicros(v int64) Amount { return Amount{micros: big.NewInt(v)} }

// Parse converts a decimal string ("10", "9.5", "0.01") into an Amount,
// rejecting malformed input, negative amounts, and more than Scale
// fractional digits of precision (the boundary never silently truncates).
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("money: empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return Amount{}, fmt.Errorf("money: invalid amount %q", s)
	}
	if len(frac) > Scale {
		return Amount{}, fmt.Errorf("money: amount %q has more than %d decimal places", s, Scale)
	}
	frac = frac + strings.Repeat("0", Scale-len(frac))
	combined := whole + frac
	v, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return Amount{}, fmt.Errorf("money: invalid amount %q", s)
	}
	if neg {
		v.Neg(v)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("money: amount %q must not be negative", s)
	}
	return Amount{micros: v}, nil
}

// MustParse panics on invalid input; only for constants in tests/defaults.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func isDigits(s string) bool {
	if s == "" {
		return true
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String renders the amount back to a decimal string with Scale fractional digits.
func (a Amount) String() string {
	if a.micros == nil {
		return "0." + strings.Repeat("0", Scale)
	}
	neg := a.micros.Sign() < 0
	abs := new(big.Int).Abs(a.micros)
	s := abs.String()
	for len(s) <= Scale {
		s = "0" + s
	}
	whole, frac := s[:len(s)-Scale], s[len(s)-Scale:]
	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func (a Amount) val() *big.Int {
	if a.micros == nil {
		return big.NewInt(0)
	}
	return a.micros
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount { return Amount{micros: new(big.Int).Add(a.val(), b.val())} }

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount { return Amount{micros: new(big.Int).Sub(a.val(), b.val())} }

// Cmp compares a to b (-1, 0, 1).
func (a Amount) Cmp(b Amount) int { return a.val().Cmp(b.val()) }

// Mul returns a scaled by the integer factor n (e.g. QUOTE_REWARD × n solvers).
func (a Amount) Mul(n int64) Amount { return Amount{micros: new(big.Int).Mul(a.val(), big.NewInt(n))} }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.val().Sign() == 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool { return a.val().Sign() < 0 }

// Percent returns round(a * pct / 100, Scale) using banker-free
// round-half-up, matching spec §4.7's `round(basePrice × percent / 100, 4)`.
func (a Amount) Percent(pct int) Amount {
	num := new(big.Int).Mul(a.val(), big.NewInt(int64(pct)))
	// num is already scaled by 10^Scale (from a) times pct (an integer
	// percentage); dividing by 100 keeps the result scaled by 10^Scale.
	q, r := new(big.Int).QuoRem(num, big.NewInt(100), new(big.Int))
	if new(big.Int).Mul(new(big.Int).Abs(r), big.NewInt(2)).Cmp(big.NewInt(100)) >= 0 {
		if num.Sign() >= 0 {
			q.Add(q, big.NewInt(1))
		} else {
			q.Sub(q, big.NewInt(1))
		}
	}
	return Amount{micros: q}
}

// Split divides the amount into n equal non-negative integer parts summing
// to exactly a (spec §4.7: "the first r = remainder mod parts parts
// receive one extra unit"). Parts that evaluate to zero are returned as
// zero Amounts; callers drop them per spec.
func (a Amount) Split(n int) []Amount {
	if n <= 0 {
		return nil
	}
	total := a.val()
	base, rem := new(big.Int).QuoRem(total, big.NewInt(int64(n)), new(big.Int))
	r := int(rem.Int64())
	if r < 0 {
		r = -r
	}
	out := make([]Amount, n)
	for i := 0; i < n; i++ {
		v := new(big.Int).Set(base)
		if i < r {
			v.Add(v, big.NewInt(1))
		}
		out[i] = Amount{micros: v}
	}
	return out
}

// ToBaseUnits converts the amount to an asset's integer base-unit
// representation (e.g. wei for an 18-decimal ERC-20), used only at the
// PaymentChannelAdapter boundary.
func (a Amount) ToBaseUnits(assetDecimals int) *big.Int {
	if assetDecimals == Scale {
		return new(big.Int).Set(a.val())
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(assetDecimals)-Scale), nil)
	if assetDecimals >= Scale {
		return new(big.Int).Mul(a.val(), factor)
	}
	factor = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Scale-assetDecimals)), nil)
	return new(big.Int).Quo(a.val(), factor)
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(v *big.Int, assetDecimals int) Amount {
	if assetDecimals == Scale {
		return Amount{micros: new(big.Int).Set(v)}
	}
	if assetDecimals >= Scale {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(assetDecimals-Scale)), nil)
		return Amount{micros: new(big.Int).Quo(v, factor)}
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Scale-assetDecimals)), nil)
	return Amount{micros: new(big.Int).Mul(v, factor)}
}
