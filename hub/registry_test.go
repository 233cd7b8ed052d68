package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *ModuleRegistry {
	t.Helper()

	return NewModuleRegistry(nil)
}

func TestModuleRegistryRegisterAndMenu(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register("echo", "Echo Service", func() (Module, error) {
		return &echoModule{}, nil
	}))
	require.NoError(t, r.Register("files", "File Library", func() (Module, error) {
		return &echoModule{}, nil
	}))

	menu := r.Menu()
	require.Len(t, menu, 2)
	assert.Equal(t, MenuItem{Name: "echo", Title: "Echo Service"}, menu[0])
	assert.Equal(t, MenuItem{Name: "files", Title: "File Library"}, menu[1])
}

func TestModuleRegistryDuplicateName(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register("echo", "Echo Service", func() (Module, error) {
		return &echoModule{}, nil
	}))

	err := r.Register("echo", "Echo Again", func() (Module, error) {
		return &echoModule{}, nil
	})
	require.ErrorIs(t, err, ErrDuplicateModule)

	assert.Len(t, r.Menu(), 1)
}

func TestModuleRegistryRegisterFactoryFailure(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register("broken", "Broken", func() (Module, error) {
		return nil, errors.New("no disk")
	})
	require.ErrorIs(t, err, ErrModuleLoad)

	assert.Empty(t, r.Menu())

	_, err = r.Dispatch("broken")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestModuleRegistryDispatchUnknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Dispatch("nope")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestModuleRegistryReload(t *testing.T) {
	r := newTestRegistry(t)

	builds := 0
	require.NoError(t, r.Register("echo", "Echo Service", func() (Module, error) {
		builds++
		return &echoModule{}, nil
	}))

	gen1, err := r.Dispatch("echo")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen1.Gen)

	gen2, err := r.Reload("echo")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen2.Gen)
	assert.NotSame(t, gen1.Module, gen2.Module)
	assert.Equal(t, 2, builds)

	// Dispatch now observes the new generation.
	cur, err := r.Dispatch("echo")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur.Gen)
}

func TestModuleRegistryReloadFailureKeepsPrevious(t *testing.T) {
	r := newTestRegistry(t)

	fail := false
	require.NoError(t, r.Register("echo", "Echo Service", func() (Module, error) {
		if fail {
			return nil, errors.New("image corrupt")
		}
		return &echoModule{}, nil
	}))

	before, err := r.Dispatch("echo")
	require.NoError(t, err)

	fail = true
	_, err = r.Reload("echo")
	require.ErrorIs(t, err, ErrModuleLoad)

	after, err := r.Dispatch("echo")
	require.NoError(t, err)
	assert.Equal(t, before.Gen, after.Gen)
	assert.Same(t, before.Module, after.Module)
}

func TestModuleRegistryReloadUnknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Reload("ghost")
	assert.ErrorIs(t, err, ErrUnknownModule)
}
