package hardware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easternanemone/daqstreams/errors"
)

func TestMockLifecycle(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	_, err := m.ReadLine(ctx, time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.ErrorIs(t, m.Write(ctx, []byte("1TP?\r")), errors.ErrNotConnected)

	require.NoError(t, m.Connect(ctx, Config{"port": "/dev/ttyUSB0"}))
	assert.ErrorIs(t, m.Connect(ctx, nil), errors.ErrAlreadyRunning)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Write(ctx, []byte("x")), errors.ErrAdapterClosed)
	assert.ErrorIs(t, m.Connect(ctx, nil), errors.ErrAdapterClosed)
}

func TestMockScriptedExchange(t *testing.T) {
	m := NewMock().Stub("1TP?", "12.500").Stub("1MD?", "1")
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx, nil))

	require.NoError(t, m.Write(ctx, []byte("1TP?\r\n")))
	line, err := m.ReadLine(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "12.500", string(line))

	require.NoError(t, m.Write(ctx, []byte("1MD?\r\n")))
	line, err = m.ReadLine(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1", string(line))

	assert.Equal(t, []string{"1TP?", "1MD?"}, m.Writes())
}

func TestMockReadTimeoutWhenSilent(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx, nil))

	require.NoError(t, m.Write(ctx, []byte("UNKNOWN\r")))
	_, err := m.ReadLine(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrReadTimeout)
}

func TestMockConnectFailureSequence(t *testing.T) {
	m := NewMock()
	m.FailConnect(errors.ErrConnectionFailed, errors.ErrConnectionFailed)
	ctx := context.Background()

	assert.ErrorIs(t, m.Connect(ctx, nil), errors.ErrConnectionFailed)
	assert.ErrorIs(t, m.Connect(ctx, nil), errors.ErrConnectionFailed)
	assert.NoError(t, m.Connect(ctx, nil))
	assert.Equal(t, 3, m.ConnectCount())
}

func TestMockPushUnsolicited(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx, nil))

	m.Push("9.81e-6")
	line, err := m.ReadLine(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "9.81e-6", string(line))
}

func TestFactoryRegistry(t *testing.T) {
	a, err := NewAdapter("mock")
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, a)

	_, err = NewAdapter("rs485")
	assert.ErrorIs(t, err, errors.ErrUnknownType)
	assert.Contains(t, Kinds(), "mock")
}

func TestConfigHelpers(t *testing.T) {
	cfg := Config{"port": "/dev/ttyUSB1", "timeout": "250ms", "bad": "nope"}
	assert.Equal(t, "/dev/ttyUSB1", cfg.Get("port", "def"))
	assert.Equal(t, "def", cfg.Get("missing", "def"))
	assert.Equal(t, 250*time.Millisecond, cfg.Duration("timeout", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("bad", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("missing", time.Second))
}
