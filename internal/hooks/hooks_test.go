package hooks

import (
	"testing"

	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/stretchr/testify/require"
)

func TestPipelineRunsInterceptorsInOrder(t *testing.T) {
	var order []string
	p := NewPipeline(
		func(ctx *MessageContext) { order = append(order, "first"); ctx.Topic = ctx.Topic + "-a" },
		func(ctx *MessageContext) { order = append(order, "second"); ctx.Topic = ctx.Topic + "-b" },
	)

	ctx := &MessageContext{Topic: "start"}
	p.Run(ctx)

	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, "start-a-b", ctx.Topic)
	require.False(t, ctx.Dropped())
}

func TestPipelineStopsAtFirstDrop(t *testing.T) {
	var ran []string
	p := NewPipeline(
		func(ctx *MessageContext) { ran = append(ran, "first"); ctx.Drop() },
		func(ctx *MessageContext) { ran = append(ran, "second") },
	)

	ctx := &MessageContext{Topic: "x"}
	p.Run(ctx)

	require.Equal(t, []string{"first"}, ran)
	require.True(t, ctx.Dropped())
}

func TestEmptyPipelineLeavesContextUnchanged(t *testing.T) {
	p := NewPipeline()
	ctx := &MessageContext{Topic: "unchanged", QoS: packet.QoS1}
	p.Run(ctx)
	require.False(t, ctx.Dropped())
	require.Equal(t, "unchanged", ctx.Topic)
}
