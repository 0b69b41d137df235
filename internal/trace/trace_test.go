package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureSynthesizesWhenNoAmbientSpan(t *testing.T) {
	tc := Capture(context.Background())
	require.NotEmpty(t, tc.TraceId)
	assert.Equal(t, "untraced", tc.SpanId)
	assert.Empty(t, tc.ParentSpanId)
}

func TestCaptureIsUniquePerCall(t *testing.T) {
	a := Capture(context.Background())
	b := Capture(context.Background())
	assert.NotEqual(t, a.TraceId, b.TraceId)
}
