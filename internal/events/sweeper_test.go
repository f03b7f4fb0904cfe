package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct{ calls atomic.Int32 }

func (c *countingExpirer) DeactivateExpiredEvents(context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestSweeperRunsImmediatelyAndOnTick(t *testing.T) {
	exp := &countingExpirer{}
	s := NewSweeper(exp, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
