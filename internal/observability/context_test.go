package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestPaperIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, PaperIDFromContext(ctx))

	ctx = WithPaperID(ctx, "2301.00001")
	assert.Equal(t, "2301.00001", PaperIDFromContext(ctx))
}
