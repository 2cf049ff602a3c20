package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_PutGetInProcessRoundTrip(t *testing.T) {
	c := NewCache(nil, "facility-1")
	ctx := context.Background()

	_, ok := c.Get(ctx)
	assert.False(t, ok)

	c.Put(ctx, Facility{Mode: "SIMPLE", Target: 42})
	f, ok := c.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, "SIMPLE", f.Mode)
	assert.Equal(t, 42.0, f.Target)
}
