package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestProtocolSentinels_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"parse", ErrParse, ErrorInvalid},
		{"validation", ErrValidation, ErrorInvalid},
		{"value mismatch", ErrValueMismatch, ErrorInvalid},
		{"not connected", ErrNotConnected, ErrorTransient},
		{"write failed", ErrWriteFailed, ErrorTransient},
		{"timeout", ErrTimeout, ErrorTransient},
		{"missing config", ErrMissingConfig, ErrorFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrap_Format(t *testing.T) {
	err := Wrap(ErrParse, "ReplyParser", "Parse", "header")
	require.Error(t, err)
	assert.Equal(t, "ReplyParser.Parse: header failed: parse failed", err.Error())
	assert.True(t, Is(err, ErrParse))
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "C", "M", "a"))
	assert.NoError(t, WrapTransient(nil, "C", "M", "a"))
	assert.NoError(t, WrapInvalid(nil, "C", "M", "a"))
	assert.NoError(t, WrapFatal(nil, "C", "M", "a"))
}

func TestWrapClassified_PreservesChain(t *testing.T) {
	base := fmt.Errorf("dial tcp: refused")
	err := WrapTransient(base, "HubClient", "Connect", "dial")

	var ce *ClassifiedError
	require.True(t, As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "HubClient", ce.Component)
	assert.True(t, Is(err, base))
	assert.True(t, IsTransient(err))
	assert.False(t, IsInvalid(err))
}

func TestIsTransient_ContextErrors(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(context.Canceled))
}

func TestIsInvalid_WrappedValidation(t *testing.T) {
	err := WrapInvalid(ErrValidation, "CmdSpec", "Match", "keywords")
	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, ErrorInvalid, Classify(err))
}
