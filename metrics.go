package edgetts

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instruments holds the OpenTelemetry counters a Synthesizer reports to,
// when a Meter is configured via WithMeter. A nil *instruments is valid
// and every method on it is a no-op, so callers who don't configure a
// Meter pay nothing.
type instruments struct {
	chunksProcessed   metric.Int64Counter
	reconnectAttempts metric.Int64Counter
	bytesStreamed     metric.Int64Counter
}

func newInstruments(m metric.Meter) (*instruments, error) {
	if m == nil {
		return nil, nil
	}

	chunksProcessed, err := m.Int64Counter("edgetts.chunks_processed",
		metric.WithDescription("number of text chunks synthesized"))
	if err != nil {
		return nil, fmt.Errorf("edgetts: build chunks_processed counter: %w", err)
	}

	reconnectAttempts, err := m.Int64Counter("edgetts.reconnect_attempts",
		metric.WithDescription("number of channel reconnect attempts"))
	if err != nil {
		return nil, fmt.Errorf("edgetts: build reconnect_attempts counter: %w", err)
	}

	bytesStreamed, err := m.Int64Counter("edgetts.bytes_streamed",
		metric.WithDescription("bytes of audio streamed to callers"))
	if err != nil {
		return nil, fmt.Errorf("edgetts: build bytes_streamed counter: %w", err)
	}

	return &instruments{
		chunksProcessed:   chunksProcessed,
		reconnectAttempts: reconnectAttempts,
		bytesStreamed:     bytesStreamed,
	}, nil
}

func (i *instruments) addChunk(ctx context.Context) {
	if i == nil {
		return
	}
	i.chunksProcessed.Add(ctx, 1)
}

func (i *instruments) addReconnectAttempt(ctx context.Context) {
	if i == nil {
		return
	}
	i.reconnectAttempts.Add(ctx, 1)
}

func (i *instruments) addBytesStreamed(ctx context.Context, n int64) {
	if i == nil {
		return
	}
	i.bytesStreamed.Add(ctx, n)
}
