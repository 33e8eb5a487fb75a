package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAll_Empty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestCheckAll_Aggregates(t *testing.T) {
	r := NewRegistry()
	r.Register("storage", func(context.Context) Status {
		return Status{Name: "storage", Healthy: true}
	})
	r.Register("coprocessor", func(context.Context) Status {
		return Status{Name: "coprocessor", Healthy: false, Detail: "timeout"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "timeout", statuses[1].Detail)
}

func TestCheckAll_AllHealthy(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b"} {
		n := name
		r.Register(n, func(context.Context) Status {
			return Status{Name: n, Healthy: true}
		})
	}
	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Len(t, statuses, 2)
}
