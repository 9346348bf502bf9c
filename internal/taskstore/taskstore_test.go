package taskstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/task"
)

func TestCreateAllocatesIncreasingIDs(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, nil)

	t1, err := s.Create("first task", "")
	require.NoError(t, err)
	require.Equal(t, 1, t1.ID)

	t2, err := s.Create("second task", "")
	require.NoError(t, err)
	require.Equal(t, 2, t2.ID)
}

func TestSlug(t *testing.T) {
	require.Equal(t, "fix-the-thing", slug("Fix The Thing!!!"))
	require.Equal(t, "a", slug("---a---"))
}

func TestUpdateCompletedUnblocksDownstream(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, nil)

	upstream, err := s.Create("upstream", "")
	require.NoError(t, err)
	downstream, err := s.Create("downstream", "")
	require.NoError(t, err)

	_, err = s.Update(downstream.ID, "", []int{upstream.ID}, nil)
	require.NoError(t, err)

	got, err := s.Get(downstream.ID)
	require.NoError(t, err)
	require.Contains(t, got.BlockedBy, upstream.ID)

	_, err = s.Update(upstream.ID, task.StatusCompleted, nil, nil)
	require.NoError(t, err)

	got, err = s.Get(downstream.ID)
	require.NoError(t, err)
	require.NotContains(t, got.BlockedBy, upstream.ID)
}

func TestUpdateAddBlocksSkipsUnknownDownstream(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, nil)

	one, err := s.Create("one", "")
	require.NoError(t, err)

	_, err = s.Update(one.ID, "", nil, []int{999})
	require.NoError(t, err, "an unknown downstream id must be skipped silently, not error")
}
