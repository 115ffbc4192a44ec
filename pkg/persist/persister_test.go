package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persisterState is a struct for persister round-trip testing.
type persisterState struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

func TestPersister_SaveLoad_JSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p := NewPersister[persisterState]("mystate", NewJSONCodec())

	original := persisterState{Label: "hello", Value: 42}

	err := p.Save(dir, func() *persisterState { return &original })

	require.NoError(t, err)
	require.True(t, p.Exists(dir))

	var restored persisterState

	err = p.Load(dir, func(s *persisterState) { restored = *s })

	require.NoError(t, err)

	assert.Equal(t, original.Label, restored.Label)
	assert.Equal(t, original.Value, restored.Value)
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p := NewPersister[persisterState]("missing", NewJSONCodec())

	called := false

	err := p.Load(dir, func(_ *persisterState) { called = true })

	require.NoError(t, err)

	assert.False(t, called)
	assert.False(t, p.Exists(dir))
}

func TestPersister_SaveInvalidDir(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("state", NewJSONCodec())

	err := p.Save("/nonexistent/path", func() *persisterState {
		return &persisterState{Label: "x"}
	})

	assert.Error(t, err)
}

func TestPersister_SaveOverwritesPrevious(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p := NewPersister[persisterState]("state", NewJSONCodec())

	err := p.Save(dir, func() *persisterState {
		return &persisterState{Label: "first", Value: 1}
	})

	require.NoError(t, err)

	err = p.Save(dir, func() *persisterState {
		return &persisterState{Label: "second", Value: 2}
	})

	require.NoError(t, err)

	var restored persisterState

	err = p.Load(dir, func(s *persisterState) { restored = *s })

	require.NoError(t, err)

	assert.Equal(t, "second", restored.Label)
	assert.Equal(t, 2, restored.Value)
}
