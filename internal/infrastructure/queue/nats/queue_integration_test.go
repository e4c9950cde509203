package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

func runEmbeddedServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestPublishReachesSubscriber(t *testing.T) {
	ns := runEmbeddedServer(t)

	subscriber, err := New(ns.ClientURL(), "catalog.ingested")
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer subscriber.Close()
	publisher, err := New(ns.ClientURL(), "catalog.ingested")
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan int, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.SubscribeCatalogIngested(ctx, func(_ context.Context, recordCount int) error {
			received <- recordCount
			return nil
		})
	}()

	// The subscription is live once the subscriber has flushed; retry until
	// the first publish is delivered.
	deadline := time.After(5 * time.Second)
	for got := false; !got; {
		if err := publisher.PublishCatalogIngested(context.Background(), 377); err != nil {
			t.Fatalf("PublishCatalogIngested() error = %v", err)
		}
		select {
		case n := <-received:
			if n != 377 {
				t.Fatalf("received %d, want 377", n)
			}
			got = true
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for event")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SubscribeCatalogIngested() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("subscriber did not stop after cancel")
	}
}
