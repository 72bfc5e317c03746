package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPendingLoginStore(t *testing.T) *pendingLoginStore {
	t.Helper()
	return newPendingLoginStore(newEngineRedis(t))
}

func TestPendingLoginStoreRoundTrip(t *testing.T) {
	store := newTestPendingLoginStore(t)
	ctx := context.Background()

	record := &pendingLogin{
		UserID:      "u1",
		ExpiresAt:   time.Now().Add(5 * time.Minute).Unix(),
		Attempts:    0,
		TOTPEnabled: true,
	}
	if err := store.Save(ctx, "pl-1", record, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "pl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != record.UserID || got.ExpiresAt != record.ExpiresAt ||
		got.Attempts != record.Attempts || got.TOTPEnabled != record.TOTPEnabled {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, record)
	}
}

func TestPendingLoginStoreGetMissing(t *testing.T) {
	store := newTestPendingLoginStore(t)

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, errPendingLoginNotFound) {
		t.Fatalf("expected errPendingLoginNotFound, got %v", err)
	}
}

func TestPendingLoginStoreGetExpired(t *testing.T) {
	store := newTestPendingLoginStore(t)
	ctx := context.Background()

	record := &pendingLogin{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	if err := store.Save(ctx, "pl-old", record, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Get(ctx, "pl-old"); !errors.Is(err, errPendingLoginExpired) {
		t.Fatalf("expected errPendingLoginExpired, got %v", err)
	}
	// The lazy expiry above removed the key entirely.
	if _, err := store.Get(ctx, "pl-old"); !errors.Is(err, errPendingLoginNotFound) {
		t.Fatalf("expected errPendingLoginNotFound after lazy expiry, got %v", err)
	}
}

func TestPendingLoginStoreDeleteReportsPresence(t *testing.T) {
	store := newTestPendingLoginStore(t)
	ctx := context.Background()

	record := &pendingLogin{UserID: "u1", ExpiresAt: time.Now().Add(time.Minute).Unix()}
	if err := store.Save(ctx, "pl-2", record, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	removed, err := store.Delete(ctx, "pl-2")
	if err != nil || !removed {
		t.Fatalf("expected first Delete to remove, got (%v, %v)", removed, err)
	}
	removed, err = store.Delete(ctx, "pl-2")
	if err != nil || removed {
		t.Fatalf("expected second Delete to be a no-op, got (%v, %v)", removed, err)
	}
}

func TestPendingLoginStoreRecordFailure(t *testing.T) {
	store := newTestPendingLoginStore(t)
	ctx := context.Background()

	record := &pendingLogin{UserID: "u1", ExpiresAt: time.Now().Add(5 * time.Minute).Unix()}
	if err := store.Save(ctx, "pl-3", record, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		exceeded, err := store.RecordFailure(ctx, "pl-3", 3)
		if err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i+1, err)
		}
		if exceeded {
			t.Fatalf("budget exhausted after %d failures", i+1)
		}
	}

	got, err := store.Get(ctx, "pl-3")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Attempts != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", got.Attempts)
	}

	exceeded, err := store.RecordFailure(ctx, "pl-3", 3)
	if err != nil {
		t.Fatalf("final RecordFailure failed: %v", err)
	}
	if !exceeded {
		t.Fatal("expected third failure to exhaust the budget")
	}
	// Exhausting the budget deletes the record.
	if _, err := store.Get(ctx, "pl-3"); !errors.Is(err, errPendingLoginNotFound) {
		t.Fatalf("expected record gone after exhaustion, got %v", err)
	}
}

func TestPendingLoginStoreRecordFailureMissing(t *testing.T) {
	store := newTestPendingLoginStore(t)

	if _, err := store.RecordFailure(context.Background(), "nope", 3); !errors.Is(err, errPendingLoginNotFound) {
		t.Fatalf("expected errPendingLoginNotFound, got %v", err)
	}
}

func TestPendingLoginDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x7f}, {pendingLoginRecordVersion1, 0x01}} {
		if _, err := decodePendingLogin(data); err == nil {
			t.Fatalf("expected decode of %v to fail", data)
		}
	}
}
