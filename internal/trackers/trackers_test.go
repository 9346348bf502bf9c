package trackers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShutdownRequestLifecycle(t *testing.T) {
	tr := New()
	id := tr.RequestShutdown("alice")

	status, err := tr.ShutdownStatus(id)
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)

	require.NoError(t, tr.RespondShutdown(id, true, "done for the day"))

	status, err = tr.ShutdownStatus(id)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, status)
}

func TestRespondUnknownShutdownErrors(t *testing.T) {
	tr := New()
	require.Error(t, tr.RespondShutdown("nope", true, ""))
}

func TestPlanApprovalLifecycle(t *testing.T) {
	tr := New()
	id := tr.SubmitPlan("alice", "do the thing")
	require.NoError(t, tr.RespondPlan(id, false))

	status, err := tr.PlanStatus(id)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, status)
}
