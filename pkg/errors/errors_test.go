package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndCode(t *testing.T) {
	err := New(ConfigurationFailed, "context assets unresolved")
	assert.EqualError(t, err, "context assets unresolved")

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ConfigurationFailed, e.Code())
}

func TestWrapPreservesOriginal(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, TransportFailed, "stream aborted")

	assert.EqualError(t, err, "stream aborted: connection reset")
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Nil(t, Wrap(nil, TransportFailed, "ignored"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(New(ValidationFailed, "bad delta"), Fields{"delta_type": "reference"})

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ValidationFailed, e.Code())
	assert.Equal(t, "reference", e.Fields()["delta_type"])
	assert.Contains(t, err.Error(), "delta_type=reference")
}

func TestIsMatchesOnCode(t *testing.T) {
	err := New(MergeFailed, "persist failed")
	assert.True(t, errors.Is(err, New(MergeFailed, "anything")))
	assert.False(t, errors.Is(err, New(ValidationFailed, "anything")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, TransportFailed, CodeOf(New(TransportFailed, "x")))
	assert.Equal(t, Unknown, CodeOf(fmt.Errorf("plain")))
}

func TestCheckContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, CheckContext(ctx, "run"))

	cancel()
	err := CheckContext(ctx, "run")
	require.Error(t, err)
	assert.Equal(t, Canceled, CodeOf(err))
}
