package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func expectPayload(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectNothing(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected payload %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

// exerciseBus runs the same contract against every driver.
func exerciseBus(t *testing.T, b Bus) {
	ctx := context.Background()

	a := make(chan string, 10)
	other := make(chan string, 10)
	subA, err := b.Subscribe("client-message", func(_ context.Context, p []byte) { a <- string(p) })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := b.Subscribe("success-response", func(_ context.Context, p []byte) { other <- string(p) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Publish(ctx, "client-message", []byte(`{"kind":"listChatrooms"}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	expectPayload(t, a, `{"kind":"listChatrooms"}`)
	expectNothing(t, other)

	// A panicking handler must not stop delivery.
	panicky := make(chan string, 10)
	if _, err := b.Subscribe("error-response", func(_ context.Context, p []byte) {
		if string(p) == "boom" {
			panic("boom")
		}
		panicky <- string(p)
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	_ = b.Publish(ctx, "error-response", []byte("boom"))
	_ = b.Publish(ctx, "error-response", []byte("after"))
	expectPayload(t, panicky, "after")

	if err := subA.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	_ = b.Publish(ctx, "client-message", []byte("ignored"))
	expectNothing(t, a)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestMemoryBus(t *testing.T) {
	b := NewMemory(testLogger())
	exerciseBus(t, b)

	if err := b.Publish(context.Background(), "client-message", nil); err != ErrClosed {
		t.Errorf("publish after close should fail with ErrClosed, got %v", err)
	}
}

func TestRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseBus(t, NewRedis(client, testLogger()))
}

func TestNATSBus(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping NATS bus test")
	}
	b, err := ConnectNATS(url, testLogger())
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}
	exerciseBus(t, b)
}

func TestMemoryUnsubscribeUnblocksPublisher(t *testing.T) {
	b := NewMemory(testLogger())
	defer b.Close()

	release := make(chan struct{})
	defer close(release)
	sub, err := b.Subscribe("client-message", func(context.Context, []byte) { <-release })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// One payload held by the handler, a full queue, and one more that has
	// to wait.
	published := make(chan error, 1)
	go func() {
		for i := 0; i < memoryBuffer+2; i++ {
			if err := b.Publish(context.Background(), "client-message", []byte("x")); err != nil {
				published <- err
				return
			}
		}
		published <- nil
	}()

	time.Sleep(100 * time.Millisecond)
	unsubscribed := make(chan struct{})
	go func() {
		_ = sub.Unsubscribe()
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("Unsubscribe blocked behind a waiting publisher")
	}
	select {
	case err := <-published:
		if err != nil {
			t.Errorf("Publish failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publisher stayed blocked after Unsubscribe")
	}
}
