package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/inbox"
)

func TestSendRejectsInvalidType(t *testing.T) {
	b := New(t.TempDir())
	err := b.Send("lead", "alice", "hi", "not-a-real-type", nil)
	require.Error(t, err)
}

func TestReadInboxDrainsAndTruncates(t *testing.T) {
	b := New(t.TempDir())
	require.NoError(t, b.Send("lead", "alice", "hello", inbox.TypeMessage, nil))
	require.NoError(t, b.Send("lead", "alice", "world", inbox.TypeMessage, nil))

	msgs, err := b.ReadInbox("alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	again, err := b.ReadInbox("alice")
	require.NoError(t, err)
	require.Empty(t, again, "inbox must be drained after the first read")
}

func TestBroadcastExcludesSender(t *testing.T) {
	b := New(t.TempDir())
	_, err := b.Broadcast("lead", "attention team", []string{"lead", "alice", "bob"})
	require.NoError(t, err)

	leadMsgs, err := b.ReadInbox("lead")
	require.NoError(t, err)
	require.Empty(t, leadMsgs, "sender must not receive its own broadcast")

	aliceMsgs, err := b.ReadInbox("alice")
	require.NoError(t, err)
	require.Len(t, aliceMsgs, 1)
}
