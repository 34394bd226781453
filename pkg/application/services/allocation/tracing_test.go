package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vsinha/wholelot/pkg/domain/entities"
	"github.com/vsinha/wholelot/pkg/infrastructure/tracing"
)

func TestWholeLotAllocator_EmitsSpans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp, err := tracing.Install(ctx, "wholelot-test", sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tp.Shutdown(ctx)
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	f := newFixture(t)
	f.addLot(t, stock, "A", "8", 1)
	f.addLot(t, stock, "B", "6", 2)
	demand := f.addDemand(t, entities.Demand{ID: "D1", Quantity: entities.Qty(14)})

	allocator, err := NewWholeLotAllocator(f.deps())
	require.NoError(t, err)
	_, err = allocator.Allocate(ctx, demand)
	require.NoError(t, err)

	var claims int
	var allocate sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "ReservationApplier.Claim":
			claims++
		case "Allocate":
			allocate = span
		}
	}
	assert.Equal(t, 2, claims)
	require.NotNil(t, allocate)
	assert.Contains(t, allocate.Attributes(), attribute.String("demand_id", "D1"))
}
