package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Emit(context.Context, string, map[string]any) error {
	return assert.AnError
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(0)

	require.NoError(t, r.Emit(ctx, "template_registered", map[string]any{"modality": "face"}))
	require.NoError(t, r.Emit(ctx, "template_revoked", nil))

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "template_registered", events[0].Action)
	assert.Equal(t, "face", events[0].Fields["modality"])
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestRecorderCapacity(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Emit(ctx, fmt.Sprintf("action_%d", i), nil))
	}

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "action_2", events[0].Action)
	assert.Equal(t, "action_4", events[2].Action)
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	a, b := NewRecorder(0), NewRecorder(0)

	fan := Fanout{a, b}
	require.NoError(t, fan.Emit(ctx, "liveness_check", map[string]any{"verdict": "pass"}))
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestFanoutCollectsSinkErrors(t *testing.T) {
	ctx := context.Background()
	healthy := NewRecorder(0)

	fan := Fanout{failingSink{}, healthy}
	err := fan.Emit(ctx, "authentication_attempt", nil)
	require.Error(t, err)
	// The healthy sink still received the event.
	assert.Len(t, healthy.Events(), 1)
}
