package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/port"
)

type fixedSource struct{ pl *pipeline.Pipeline }

func (f fixedSource) Pipeline() *pipeline.Pipeline { return f.pl }

func TestGraphHandler_ListGraphs(t *testing.T) {
	pl := pipeline.New(nil)
	src := filter.NewBase("src", "src", "source", nil, plugin.TypeSource, nil)
	sink := filter.NewBase("sink", "sink", "sink", nil, plugin.TypeAudioSink, nil)
	src.AddOutPort("out", port.ModePush, caps.New("audio/pcm"))
	sink.AddInPort("in", port.ModePush)
	require.NoError(t, pl.AddFilter(src))
	require.NoError(t, pl.AddFilter(sink))
	require.NoError(t, pl.LinkPorts("src", "out", "sink", "in"))

	h := NewGraphHandler()
	h.AddSource("player", fixedSource{pl: pl})

	out, err := h.listGraphs(nil, &listGraphsInput{})
	require.NoError(t, err)
	require.Contains(t, out.Body, "player")

	graph := out.Body["player"]
	assert.Equal(t, pl.ID().String(), graph.ID)
	require.Len(t, graph.Filters, 2)

	var srcNode FilterNode
	for _, f := range graph.Filters {
		if f.ID == "src" {
			srcNode = f
		}
	}
	require.Len(t, srcNode.OutPorts, 1)
	assert.True(t, srcNode.OutPorts[0].Connected)
	assert.Equal(t, "sink", srcNode.OutPorts[0].PeerFilter)
	assert.Equal(t, "in", srcNode.OutPorts[0].PeerPort)
}

func TestGraphHandler_RemoveSource(t *testing.T) {
	pl := pipeline.New(nil)
	h := NewGraphHandler()
	h.AddSource("player", fixedSource{pl: pl})
	h.RemoveSource("player")

	out, err := h.listGraphs(nil, &listGraphsInput{})
	require.NoError(t, err)
	assert.NotContains(t, out.Body, "player")
}
