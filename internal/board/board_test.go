package board

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/task"
)

func seedTask(t *testing.T, dir string, tk *task.Task) {
	b := New(dir, nil)
	require.NoError(t, b.Publish(tk))
}

func TestClaimUniquenessUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	tk := &task.Task{ID: 1, Subject: "race me", Status: task.StatusPending}
	seedTask(t, dir, tk)

	b := New(dir, nil)

	const n = 16
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := b.Claim(1, "owner")
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	require.Equal(t, 1, count, "exactly one concurrent claim should succeed")
}

func TestScanUnclaimedExcludesBlocked(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, nil)
	require.NoError(t, b.Publish(&task.Task{ID: 1, Subject: "open", Status: task.StatusPending}))
	require.NoError(t, b.Publish(&task.Task{ID: 2, Subject: "blocked", Status: task.StatusPending, BlockedBy: []int{1}}))
	require.NoError(t, b.Publish(&task.Task{ID: 3, Subject: "owned", Status: task.StatusPending, Owner: "someone"}))

	unclaimed, err := b.ScanUnclaimed()
	require.NoError(t, err)
	require.Len(t, unclaimed, 1)
	require.Equal(t, 1, unclaimed[0].ID)
}
