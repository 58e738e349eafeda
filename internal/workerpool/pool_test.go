package workerpool

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMap_ResultsInInputOrder tests that results line up with jobs
func TestMap_ResultsInInputOrder(t *testing.T) {
	jobs := []int{1, 2, 3, 4, 5}
	results := Map(context.Background(), jobs, 3, func(_ context.Context, j int) (int, bool, error) {
		return j * 10, true, nil
	})

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, StatusOK, r.Status)
		assert.Equal(t, jobs[i]*10, r.Value)
	}
}

// TestMap_IsolatesErrors tests that one failing task leaves the rest
// untouched
func TestMap_IsolatesErrors(t *testing.T) {
	jobs := []int{0, 1, 2}
	results := Map(context.Background(), jobs, 2, func(_ context.Context, j int) (int, bool, error) {
		if j == 1 {
			return 0, false, fmt.Errorf("task failure")
		}
		return j, true, nil
	})

	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Error(t, results[1].Err)
	assert.Equal(t, StatusOK, results[2].Status)
}

// TestMap_RecoversPanics tests panic containment inside tasks
func TestMap_RecoversPanics(t *testing.T) {
	jobs := []int{0, 1}
	results := Map(context.Background(), jobs, 1, func(_ context.Context, j int) (int, bool, error) {
		if j == 0 {
			panic("boom")
		}
		return j, true, nil
	})

	assert.Equal(t, StatusFailed, results[0].Status)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "panicked")
	assert.Equal(t, StatusOK, results[1].Status)
}

// TestMap_EmptyResultStatus tests the ok=false convention
func TestMap_EmptyResultStatus(t *testing.T) {
	results := Map(context.Background(), []int{7}, 1, func(_ context.Context, j int) (int, bool, error) {
		return 0, false, nil
	})
	assert.Equal(t, StatusEmpty, results[0].Status)
	assert.NoError(t, results[0].Err)
}

// TestMap_CancelledContextFailsRemainingJobs tests cancellation handling
func TestMap_CancelledContextFailsRemainingJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := make([]int, 100)
	results := Map(ctx, jobs, 2, func(_ context.Context, j int) (int, bool, error) {
		return j, true, nil
	})

	failed := 0
	for _, r := range results {
		if r.Status == StatusFailed {
			failed++
			assert.ErrorIs(t, r.Err, context.Canceled)
		}
	}
	assert.Greater(t, failed, 0)
}

// TestMap_WorkerCountCappedByJobs tests that excess workers are harmless
func TestMap_WorkerCountCappedByJobs(t *testing.T) {
	var running atomic.Int32
	results := Map(context.Background(), []int{1, 2}, 50, func(_ context.Context, j int) (int, bool, error) {
		running.Add(1)
		return j, true, nil
	})
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), running.Load())
}
