package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupInbox(t *testing.T, opts ...InboxOption) *Inbox {
	t.Helper()
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewInbox(client, opts...)
}

func TestInbox_MarkProcessed_FirstDelivery(t *testing.T) {
	inbox := setupInbox(t)

	first, err := inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.True(t, first)
}

func TestInbox_MarkProcessed_Redelivery(t *testing.T) {
	inbox := setupInbox(t)

	_, err := inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)

	first, err := inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.False(t, first)
}

func TestInbox_Processed(t *testing.T) {
	inbox := setupInbox(t)

	seen, err := inbox.Processed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.False(t, seen)

	_, err = inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)

	seen, err = inbox.Processed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestInbox_MarkProcessed_PerHandler(t *testing.T) {
	inbox := setupInbox(t)

	first, err := inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.True(t, first)

	first, err = inbox.MarkProcessed(context.Background(), "projection", "msg-1")
	require.NoError(t, err)
	require.True(t, first)
}

func TestInbox_RetentionExpires(t *testing.T) {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inbox := NewInbox(client, WithRetention(time.Minute))

	first, err := inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.True(t, first)

	server.FastForward(2 * time.Minute)

	first, err = inbox.MarkProcessed(context.Background(), "saga", "msg-1")
	require.NoError(t, err)
	require.True(t, first)
}
