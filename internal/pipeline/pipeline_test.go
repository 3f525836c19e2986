package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

func TestNew_AssignsUniqueID(t *testing.T) {
	a := New(nil)
	b := New(nil)
	require.NotEqual(t, a.ID(), b.ID())
	require.NotEmpty(t, a.ID().String())
}

func TestFilterIDs_ReflectsInsertionOrder(t *testing.T) {
	p := New(nil)
	require.Empty(t, p.FilterIDs())

	f1 := filter.NewBase("f1", "f1", "source", nil, plugin.TypeSource, nil)
	f2 := filter.NewBase("f2", "f2", "sink", nil, plugin.TypeAudioSink, nil)

	require.NoError(t, p.AddFilter(f1))
	require.NoError(t, p.AddFilter(f2))

	assert.Equal(t, []string{"f1", "f2"}, p.FilterIDs())

	// Mutating the returned slice must not affect the pipeline's own state.
	ids := p.FilterIDs()
	ids[0] = "mutated"
	assert.Equal(t, []string{"f1", "f2"}, p.FilterIDs())
}

func TestFilterIDs_OmitsRemovedFilters(t *testing.T) {
	p := New(nil)
	f1 := filter.NewBase("f1", "f1", "source", nil, plugin.TypeSource, nil)
	f2 := filter.NewBase("f2", "f2", "sink", nil, plugin.TypeAudioSink, nil)
	require.NoError(t, p.AddFilter(f1))
	require.NoError(t, p.AddFilter(f2))

	p.RemoveFilterChain("f1")
	assert.Equal(t, []string{"f2"}, p.FilterIDs())
}
