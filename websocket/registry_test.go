package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_BroadcastDeliversToAllMembers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reg := NewRegistry()

	var servers []*Conn
	var clients []*Conn
	for i := 0; i < 3; i++ {
		client, server := pipePair(t)
		clients = append(clients, client)
		servers = append(servers, server)
		reg.Register(server)
	}
	defer func() {
		for _, c := range clients {
			c.Stop(ctx)
		}
		for _, s := range servers {
			s.Stop(ctx)
		}
	}()

	require.Equal(t, 3, reg.Count())

	reg.Broadcast(ctx, NewTextMessage(NewText("hi all")))

	for _, client := range clients {
		msg, err := client.Receive(ctx)
		require.NoError(t, err)
		text, ok := msg.Text()
		require.True(t, ok)
		require.Equal(t, "hi all", text.String())
	}
}

func TestRegistry_UnregisterRemovesMember(t *testing.T) {
	client, server := pipePair(t)
	defer client.Stop(context.Background())

	reg := NewRegistry()
	reg.Register(server)
	require.Equal(t, 1, reg.Count())

	reg.Unregister(server)
	require.Equal(t, 0, reg.Count())
}
