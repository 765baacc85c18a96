package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/waypanel-io/waypanel/internal/models"
)

func receiveOne(t *testing.T, b *Bus) models.Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	update, err := b.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	return update
}

func TestPublishReceive(t *testing.T) {
	b := New(4)
	defer b.Close()

	want := models.TrayChanged{Items: []models.TrayItem{{Service: "org.a", Path: "/x"}}}
	if err := b.Publish(want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok := receiveOne(t, b).(models.TrayChanged)
	if !ok {
		t.Fatalf("received wrong type %T", got)
	}
	if got.Items[0].Service != "org.a" {
		t.Errorf("Service = %q, want org.a", got.Items[0].Service)
	}
}

func TestPerKindOrderingPreserved(t *testing.T) {
	b := New(16)
	defer b.Close()

	for i := 0; i < 5; i++ {
		snap := &models.CompositorSnapshot{ActiveWorkspaceID: i}
		if err := b.Publish(models.CompositorChanged{Snapshot: snap}); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 5; i++ {
		update := receiveOne(t, b).(models.CompositorChanged)
		if update.Snapshot.ActiveWorkspaceID != i {
			t.Fatalf("message %d delivered out of order (got workspace %d)", i, update.Snapshot.ActiveWorkspaceID)
		}
	}
}

func TestFullStreamDropsOwnOldest(t *testing.T) {
	b := New(2)
	defer b.Close()

	// One pending config message must survive a compositor flood untouched.
	rejected := models.ConfigRejected{Err: fmt.Errorf("boom")}
	if err := b.Publish(rejected); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		snap := &models.CompositorSnapshot{ActiveWorkspaceID: i}
		if err := b.Publish(models.CompositorChanged{Snapshot: snap}); err != nil {
			t.Fatal(err)
		}
	}

	if got := b.Dropped(models.KindCompositor); got != 8 {
		t.Errorf("Dropped(compositor) = %d, want 8", got)
	}
	if got := b.Dropped(models.KindConfig); got != 0 {
		t.Errorf("Dropped(config) = %d, want 0", got)
	}

	var gotConfig bool
	var compositorIDs []int
	for b.Pending() > 0 {
		switch update := receiveOne(t, b).(type) {
		case models.ConfigRejected:
			gotConfig = true
		case models.CompositorChanged:
			compositorIDs = append(compositorIDs, update.Snapshot.ActiveWorkspaceID)
		}
	}

	if !gotConfig {
		t.Error("config message was displaced by another producer's flood")
	}
	// The two newest compositor snapshots survive, still in order.
	if len(compositorIDs) != 2 || compositorIDs[0] != 8 || compositorIDs[1] != 9 {
		t.Errorf("surviving compositor messages = %v, want [8 9]", compositorIDs)
	}
}

func TestReceiveBlocksUntilPublish(t *testing.T) {
	b := New(4)
	defer b.Close()

	done := make(chan models.Update, 1)
	go func() {
		update, err := b.Receive(context.Background())
		if err != nil {
			return
		}
		done <- update
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Receive returned before anything was published")
	default:
	}

	if err := b.Publish(models.TrayChanged{}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake up after Publish")
	}
}

func TestReceiveHonorsContext(t *testing.T) {
	b := New(4)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Receive(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Receive error = %v, want context.DeadlineExceeded", err)
	}
}

func TestCloseDrainsThenFails(t *testing.T) {
	b := New(4)

	if err := b.Publish(models.TrayChanged{}); err != nil {
		t.Fatal(err)
	}
	b.Close()

	if err := b.Publish(models.TrayChanged{}); err != ErrClosed {
		t.Errorf("Publish on closed bus = %v, want ErrClosed", err)
	}

	if _, err := b.Receive(context.Background()); err != nil {
		t.Errorf("pending message should still be deliverable after Close: %v", err)
	}
	if _, err := b.Receive(context.Background()); err != ErrClosed {
		t.Errorf("Receive on drained closed bus = %v, want ErrClosed", err)
	}
}
