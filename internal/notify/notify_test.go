package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/internal/resume"
)

func TestPublisherDeliversToOwnerChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, Channel("0xowner"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewPublisher(client, nil)
	pub.Notify(ctx, Event{Type: TypePublished, NodeID: "n1", Status: resume.StatusPublished, Owner: "0xowner"})

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user_notify:0xowner", msg.Channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, TypePublished, got["type"])
	assert.Equal(t, "n1", got["node_id"])
	assert.Equal(t, "published", got["status"])
	assert.NotContains(t, got, "Owner")
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	p.Notify(context.Background(), Event{Owner: "x"})
	NewPublisher(nil, nil).Notify(context.Background(), Event{Owner: "x"})
}
