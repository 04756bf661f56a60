package natsbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestPublishUsesChannelSubject(t *testing.T) {
	ns := runServer(t)

	pub, err := Connect(ns.ClientURL(), "qa.", nil)
	require.NoError(t, err)
	t.Cleanup(pub.Close)
	assert.Equal(t, "qa.comment_update", pub.Subject(domain.ChannelComment))

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	msgs := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe("qa.>", msgs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Unsubscribe() })
	require.NoError(t, sub.Flush())

	pub.Notify(context.Background(), domain.Event{
		Channel: domain.ChannelComment,
		Type:    "comment_created",
		Room:    "project:p1",
		Payload: json.RawMessage(`{"id":"c1"}`),
	})

	select {
	case msg := <-msgs:
		assert.Equal(t, "qa.comment_update", msg.Subject)
		var ev domain.Event
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "comment_created", ev.Type)
		assert.Equal(t, "project:p1", ev.Room)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "", nil)
	assert.Error(t, err)
}
