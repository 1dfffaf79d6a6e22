package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkBroadcast(b *testing.B, recipients int) {
	ctx := context.Background()
	hub := NewHub(Options{})

	// Setup joins must fit in every buffer or clients get cut off.
	buffer := recipients + 64
	sender := NewClient("sender", buffer)
	hub.Attach(sender)
	_ = hub.Handle(ctx, sender, &Command{Kind: CommandJoin, Sender: Identity{Username: "sender"}})

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i), buffer)
		hub.Attach(c)
		_ = hub.Handle(ctx, c, &Command{Kind: CommandJoin, Sender: Identity{Username: fmt.Sprintf("client%d", i)}})
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	drain(target.Events)
	done := make(chan struct{})
	defer close(done)
	for _, c := range append(clients[1:], sender) {
		go func(cl *Client) {
			for {
				select {
				case <-cl.Events:
				case <-done:
					return
				}
			}
		}(c)
	}

	cmd := &Command{Kind: CommandBroadcast, Text: "payload"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = hub.Handle(ctx, sender, cmd)
		<-target.Events
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }

func BenchmarkPrivateSend(b *testing.B) {
	ctx := context.Background()
	hub := NewHub(Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	hub.Attach(alice)
	hub.Attach(bob)
	_ = hub.Handle(ctx, alice, &Command{Kind: CommandJoin, Sender: Identity{Username: "alice"}})
	_ = hub.Handle(ctx, bob, &Command{Kind: CommandJoin, Sender: Identity{Username: "bob"}})
	drain(alice.Events)

	cmd := &Command{Kind: CommandPrivateSend, To: "alice", Payload: "aXY=:Y3Q="}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = hub.Handle(ctx, bob, cmd)
		<-alice.Events
	}
}
