package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageNilErrorIsGenuinelyNil(t *testing.T) {
	// This is the regression this package exists to prevent: a typed nil
	// *Error boxed into an error interface is non-nil, so Storage/Adapter/
	// Verifier must check before constructing.
	var err error = Storage(nil)
	require.NoError(t, err)
	require.Nil(t, err)
}

func TestAdapterAndVerifierNilSameGuarantee(t *testing.T) {
	require.Nil(t, Adapter(nil))
	require.Nil(t, Verifier(nil))
}

func TestStorageWrapsNonNil(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause)
	require.Error(t, err)
	require.ErrorIs(t, err, cause)

	e, ok := As(err)
	require.True(t, ok)
	require.Equal(t, KindStorage, e.Kind)
	require.Equal(t, 500, e.Status)
}

func TestValidationfFormats(t *testing.T) {
	err := Validationf("price %q is invalid", "abc")
	require.Equal(t, `validation_error: price "abc" is invalid`, err.Error())
}

func TestAsRejectsPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	require.False(t, ok)
}
