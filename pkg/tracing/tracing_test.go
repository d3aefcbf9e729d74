package tracing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Disabled(t *testing.T) {
	svc, err := NewService(&Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, svc)

	// No provider means shutdown is a no-op
	assert.NoError(t, svc.Shutdown(context.Background()))

	ctx, span := svc.StartSpan(context.Background(), "test")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
}

func TestNewService_NilConfigUsesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "documind", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SamplingRate)
	assert.True(t, cfg.Enabled)
}

func TestTraceFunc_PropagatesError(t *testing.T) {
	svc, err := NewService(&Config{Enabled: false})
	require.NoError(t, err)

	wantErr := fmt.Errorf("backend unavailable")
	gotErr := svc.TraceFunc(context.Background(), "search.query", func(ctx context.Context) error {
		return wantErr
	})
	assert.Equal(t, wantErr, gotErr)

	assert.NoError(t, svc.TraceFunc(context.Background(), "search.query", func(ctx context.Context) error {
		return nil
	}))
}

func TestGetTraceID_EmptyWithoutSpan(t *testing.T) {
	assert.Equal(t, "", GetTraceID(context.Background()))
	assert.Equal(t, "", GetSpanID(context.Background()))
}
