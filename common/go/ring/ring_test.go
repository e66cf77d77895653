package ring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitFilledTimesOutWithoutError(t *testing.T) {
	r := New(2, 0, 16)
	ok, err := r.WaitFilled(context.Background(), 0, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWaitFilledReturnsOnceMarked(t *testing.T) {
	r := New(2, 0, 16)
	go func() {
		time.Sleep(5 * time.Millisecond)
		r.MarkFilled(1)
	}()

	ok, err := r.WaitFilled(context.Background(), 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, r.IsFilled(1))
}

func TestWaitFreeRoundTrip(t *testing.T) {
	r := New(1, 8, 16)
	r.MarkFilled(0)
	require.True(t, r.IsFilled(0))

	go func() {
		time.Sleep(5 * time.Millisecond)
		r.MarkFree(0)
	}()

	ok, err := r.WaitFree(context.Background(), 0, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWaitRespectsContextCancel(t *testing.T) {
	r := New(1, 0, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := r.WaitFilled(ctx, 0, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
