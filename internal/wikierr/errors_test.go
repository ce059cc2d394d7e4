package wikierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "repository %s missing", "acme/widget")
	k, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, k)
	assert.Contains(t, err.Error(), "not_found")
	assert.Contains(t, err.Error(), "acme/widget")

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	_, ok = KindOf(nil)
	assert.False(t, ok)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIO, cause, "write %s", "wiki.db")

	assert.True(t, Is(err, KindIO))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	// Kinds survive further wrapping with %w.
	outer := fmt.Errorf("stage readme: %w", err)
	assert.True(t, Is(outer, KindIO))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindIO, "io")))
	assert.True(t, IsRetryable(New(KindTransient, "429")))
	for _, k := range []Kind{KindConfig, KindNotFound, KindConflict, KindValidation, KindParse, KindCanceled} {
		assert.False(t, IsRetryable(New(k, "x")), k.String())
	}
	assert.False(t, IsRetryable(errors.New("plain")))
}
