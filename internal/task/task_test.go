package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

func TestManager_StartAndStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var iterations atomic.Int32
	err := mgr.Start("counter", func() bool {
		iterations.Add(1)
		time.Sleep(time.Millisecond)
		return true
	}, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return iterations.Load() > 0
	}, time.Second, time.Millisecond)

	mgr.Stop()
	mgr.Wait()
	assert.Equal(t, 0, mgr.Count())
}

func TestManager_TaskReturnsFalse(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	cleaned := make(chan struct{})
	err := mgr.Start("oneshot", func() bool {
		return false
	}, func() {
		close(cleaned)
	})
	require.NoError(t, err)

	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not run")
	}

	mgr.Wait()
	assert.Equal(t, 0, mgr.Count())
}

func TestManager_PanicRecovered(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	cleaned := make(chan struct{})
	err := mgr.Start("panicky", func() bool {
		panic("boom")
	}, func() {
		close(cleaned)
	})
	require.NoError(t, err)

	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not run after panic")
	}

	mgr.Wait()
}

func TestManager_StartAfterStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())
	mgr.Stop()

	err := mgr.Start("late", func() bool { return false }, nil)
	require.Error(t, err)
}
