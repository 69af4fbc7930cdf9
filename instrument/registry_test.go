package instrument

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/measurement"
)

type nullInstrument struct {
	id string
}

func (n *nullInstrument) ID() string                                       { return n.id }
func (n *nullInstrument) Status() Status                                   { return Status{State: StateDisconnected} }
func (n *nullInstrument) Initialize(context.Context) error                 { return nil }
func (n *nullInstrument) Shutdown(context.Context) error                   { return nil }
func (n *nullInstrument) Measurements(string) *measurement.Subscription    { return nil }
func (n *nullInstrument) Execute(context.Context, Command) (Response, error) {
	return Ok(), nil
}

func nullFactory(id string, _ json.RawMessage, _ Dependencies) (Instrument, error) {
	return &nullInstrument{id: id}, nil
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Registration{
		Name:        "null",
		Description: "inert test instrument",
		Version:     "1.0.0",
		Factory:     nullFactory,
	}))

	inst, err := r.Create("null", "null1", nil, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "null1", inst.ID())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	reg := &Registration{Name: "null", Factory: nullFactory}
	require.NoError(t, r.Register(reg))

	err := r.Register(&Registration{Name: "null", Factory: nullFactory})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(nil), errors.ErrInvalidConfig)
	assert.ErrorIs(t, r.Register(&Registration{Name: "x"}), errors.ErrInvalidConfig)
	assert.ErrorIs(t, r.Register(&Registration{Factory: nullFactory}), errors.ErrInvalidConfig)

	_, err := r.Create("null", "", nil, Dependencies{})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("phantom", "p1", nil, Dependencies{})
	assert.ErrorIs(t, err, errors.ErrUnknownType)
}

func TestRegistryTypes(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"esp300", "ell14", "simcam"} {
		require.NoError(t, r.Register(&Registration{Name: name, Factory: nullFactory}))
	}
	assert.Equal(t, []string{"ell14", "esp300", "simcam"}, r.Types())

	reg, ok := r.Lookup("esp300")
	require.True(t, ok)
	assert.Equal(t, "esp300", reg.Name)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}
