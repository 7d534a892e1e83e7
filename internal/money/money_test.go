package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	cases := map[string]string{
		"10":      "10.0000",
		"9.5":     "9.5000",
		"0.01":    "0.0100",
		"0":       "0.0000",
		"100.1234": "100.1234",
	}
	for in, want := range cases {
		a, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, a.String(), in)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "-1", "1.23456", "1.2.3"} {
		_, err := Parse(s)
		require.Error(t, err, s)
	}
}

func TestAddSubCmp(t *testing.T) {
	a := MustParse("10")
	b := MustParse("3")
	require.Equal(t, "13.0000", a.Add(b).String())
	require.Equal(t, "7.0000", a.Sub(b).String())
	require.Equal(t, 1, a.Cmp(b))
	require.Equal(t, -1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(a))
}

func TestMul(t *testing.T) {
	a := MustParse("0.01")
	require.Equal(t, "0.0300", a.Mul(3).String())
}

func TestPercentRoundsHalfUp(t *testing.T) {
	// 10 * 20% = 2.0000 exactly.
	require.Equal(t, "2.0000", MustParse("10").Percent(20).String())
	// 1 * 33% = 0.33, not a rounding edge case.
	require.Equal(t, "0.3300", MustParse("1").Percent(33).String())
	// 0.0001 * 50% = 0.00005, which rounds half up to 0.0001.
	require.Equal(t, "0.0001", MustParse("0.0001").Percent(50).String())
}

func TestSplitDistributesRemainderFirst(t *testing.T) {
	parts := MustParse("10").Split(3)
	require.Len(t, parts, 3)
	var sum Amount
	for i, p := range parts {
		sum = sum.Add(p)
		if i < 1 { // 10.0000 micros = 100000, 100000 % 3 == 1
			require.Equal(t, "3.3334", p.String())
		}
	}
	require.Equal(t, MustParse("10").String(), sum.String())
}

func TestToBaseUnitsAndBack(t *testing.T) {
	a := MustParse("1.5")
	wei := a.ToBaseUnits(18)
	require.Equal(t, new(big.Int).Mul(big.NewInt(15), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)), wei)

	back := FromBaseUnits(wei, 18)
	require.Equal(t, a.String(), back.String())
}

func TestIsZeroIsNegative(t *testing.T) {
	require.True(t, Zero().IsZero())
	require.False(t, MustParse("1").IsZero())
	require.True(t, MustParse("10").Sub(MustParse("20")).IsNegative())
}
