package background

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/background"
)

func TestRunCompletesAndNotifies(t *testing.T) {
	e := New(t.TempDir(), nil)
	id := e.Run("echo hello")
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		job, ok := e.Check(id)
		return ok && job.Status != background.StatusRunning
	}, 2*time.Second, 20*time.Millisecond)

	job, ok := e.Check(id)
	require.True(t, ok)
	require.Equal(t, background.StatusCompleted, job.Status)
	require.Contains(t, job.Result, "hello")
}

func TestDrainNotificationsIsAtMostOnce(t *testing.T) {
	e := New(t.TempDir(), nil)
	id := e.Run("echo one")

	require.Eventually(t, func() bool {
		job, ok := e.Check(id)
		return ok && job.Status != background.StatusRunning
	}, 2*time.Second, 20*time.Millisecond)

	first := e.DrainNotifications()
	require.Len(t, first, 1)

	second := e.DrainNotifications()
	require.Empty(t, second, "a notification must not be delivered twice")
}
