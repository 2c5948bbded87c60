package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ougirez/maturity/internal/domain"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(1)
	b := h.Subscribe(1)

	evt := Event{Type: TypeSubmissionUpdated, SubmissionID: "s-1", To: domain.StatusValidated}
	require.NoError(t, h.Publish(context.Background(), evt))

	assert.Equal(t, evt, <-a)
	assert.Equal(t, evt, <-b)

	// full buffer drops instead of blocking
	require.NoError(t, h.Publish(context.Background(), evt))
	require.NoError(t, h.Publish(context.Background(), evt))
	assert.Len(t, a, 1)

	h.Unsubscribe(a)
	_, open := <-a
	assert.True(t, open)
	_, open = <-a
	assert.False(t, open)
	h.Unsubscribe(a)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	h := NewHub()
	ch := h.Subscribe(1)

	err := Multi{failing{boom}, h, Nop{}}.Publish(context.Background(), Event{SubmissionID: "s"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "s", (<-ch).SubmissionID)
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "maturity:test")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	at := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	p := NewRedisPublisher(client, "maturity:test")
	require.NoError(t, p.Publish(ctx, Event{
		Type:         TypeSubmissionUpdated,
		SubmissionID: "s-1",
		From:         domain.StatusDraft,
		To:           domain.StatusPendingInitialApproval,
		At:           at,
	}))

	select {
	case msg := <-sub.Channel():
		evt, err := Decode(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, "s-1", evt.SubmissionID)
		assert.Equal(t, domain.StatusPendingInitialApproval, evt.To)
		assert.True(t, at.Equal(evt.At))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
