package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := Wrap(ErrorTypeArchiveCorrupt, fmt.Errorf("zip: not a valid zip file"), "camera %d %04d.%02d", 65, 2016, 6)

	assert.True(t, stderrors.Is(err, ErrArchiveCorrupt))
	assert.False(t, stderrors.Is(err, ErrArchiveAbsent))

	wrapped := fmt.Errorf("month failed: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrArchiveCorrupt))

	var typed *Error
	assert.True(t, stderrors.As(wrapped, &typed))
	assert.Equal(t, ErrorTypeArchiveCorrupt, typed.Type)
	assert.Contains(t, typed.Error(), "not a valid zip file")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeArchiveCorrupt))
	assert.False(t, IsRetryable(ErrorTypeStoreWrite))
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{404, false},
		{403, false},
		{200, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableStatusCode(tt.code), "status %d", tt.code)
	}
}
