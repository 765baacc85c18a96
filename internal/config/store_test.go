package config

import (
	"errors"
	"testing"

	"github.com/waypanel-io/waypanel/internal/models"
)

func TestStoreReplaceAndReject(t *testing.T) {
	first := &models.Snapshot{ID: "first"}
	store := NewStore(first)

	if store.Current() != first {
		t.Fatal("Current should return the initial snapshot")
	}
	if store.Degraded() {
		t.Fatal("fresh store must not be degraded")
	}

	rejectErr := errors.New("bad config")
	store.Reject(rejectErr)

	if store.Current() != first {
		t.Error("Reject must leave the previous snapshot authoritative")
	}
	if !store.Degraded() {
		t.Error("store should be degraded after Reject")
	}
	if store.LastError() != rejectErr {
		t.Errorf("LastError = %v, want %v", store.LastError(), rejectErr)
	}

	second := &models.Snapshot{ID: "second"}
	store.Replace(second)

	if store.Current() != second {
		t.Error("Replace must install the new snapshot")
	}
	if store.Degraded() {
		t.Error("Replace must clear the degraded state")
	}
}
