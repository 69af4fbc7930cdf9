package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultClassString(t *testing.T) {
	assert.Equal(t, "recoverable", FaultRecoverable.String())
	assert.Equal(t, "fatal", FaultFatal.String())
	assert.Equal(t, "unknown", FaultClass(99).String())
}

func TestWrapFormat(t *testing.T) {
	err := Wrap(ErrConnectionFailed, "ESP300", "Initialize", "adapter connect")
	require.Error(t, err)
	assert.Equal(t, "ESP300.Initialize: adapter connect failed: hardware connection failed", err.Error())
	assert.True(t, Is(err, ErrConnectionFailed))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapRecoverable(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
}

func TestFaultClassification(t *testing.T) {
	rec := WrapRecoverable(ErrReadTimeout, "stage1", "Position", "query")
	assert.True(t, IsRecoverable(rec))
	assert.False(t, IsFatal(rec))

	fatal := WrapFatal(ErrAdapterClosed, "stage1", "Initialize", "connect")
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsRecoverable(fatal))

	var f *Fault
	require.True(t, As(fatal, &f))
	assert.Equal(t, "stage1", f.Instrument)
	assert.Equal(t, FaultFatal, f.Class)
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	inner := WrapFatal(ErrInvalidConfig, "cam1", "Initialize", "parse params")
	outer := fmt.Errorf("spawn failed: %w", inner)

	assert.True(t, IsFatal(outer))
	assert.True(t, Is(outer, ErrInvalidConfig))
}

func TestContextErrorsAreRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(context.DeadlineExceeded))
	assert.True(t, IsRecoverable(context.Canceled))
	assert.True(t, IsRecoverable(ErrTimeout))
	assert.True(t, IsRecoverable(ErrDeviceRejected))
}

func TestClassifyDefaultsToRecoverable(t *testing.T) {
	assert.Equal(t, FaultRecoverable, Classify(New("some device hiccup")))
	assert.Equal(t, FaultFatal, Classify(ErrInvalidConfig))
}
