package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexlane/cortex/internal/domain/message"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	sess := Open(t.TempDir(), "20260101_000000")
	history := []message.Message{
		message.User("hello"),
		message.Assistant("hi there"),
	}
	require.NoError(t, sess.Save("main", history))

	loaded, err := sess.Load("main")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "hello", loaded[0].Content)
	require.Equal(t, "hi there", loaded[1].Content)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	sess := Open(t.TempDir(), "20260101_000000")
	loaded, err := sess.Load("main")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestListAndNewest(t *testing.T) {
	root := t.TempDir()
	for _, key := range []string{"20260101_000000", "20260102_000000", "20260103_000000"} {
		sess := Open(root, key)
		require.NoError(t, sess.Save("main", []message.Message{message.User("x")}))
	}

	keys, err := List(root)
	require.NoError(t, err)
	require.Equal(t, []string{"20260103_000000", "20260102_000000", "20260101_000000"}, keys)

	newest, err := Newest(root)
	require.NoError(t, err)
	require.Equal(t, "20260103_000000", newest)
}

func TestSwitcherNotifiesSubscribers(t *testing.T) {
	root := t.TempDir()
	sw := NewSwitcher(root, "20260101_000000")

	var seenKeys []string
	sw.Subscribe(func(s *Session) { seenKeys = append(seenKeys, s.Key) })

	sw.Switch("20260102_000000")

	require.Equal(t, []string{"20260101_000000", "20260102_000000"}, seenKeys)
	require.Equal(t, "20260102_000000", sw.Current().Key)
}
