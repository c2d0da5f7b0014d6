package db

import (
	"context"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
	"github.com/chainsafe/settlement-switch/pkg/pgutil"
	mghelper "github.com/chainsafe/settlement-switch/pkg/pgutil/migrations"
)

func setupStore(t *testing.T) (context.Context, *Store) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	bdb, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, bdb, &TransferRecord{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(bdb)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed ledger tests")
}

func storedTransfer(id string, initiatedAt time.Time) *bridge.Transfer {
	return &bridge.Transfer{
		ID:        id,
		Sender:    testSender,
		Recipient: common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Route: &bridge.Route{
			AdapterName: "sim",
			TokenIn:     "USDC",
			TokenOut:    "USDC",
			AmountIn:    big.NewInt(10_000),
			AmountOut:   big.NewInt(9_970),
			SrcChain:    "ethereum",
			DstChain:    "arbitrum",
			Deadline:    initiatedAt.Add(5 * time.Minute),
		},
		Status:      bridge.TransferStatusPending,
		InitiatedAt: initiatedAt,
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	ctx, store := setupStore(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, storedTransfer("t1", t0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Sender != testSender {
		t.Errorf("unexpected sender %s", got.Sender)
	}
	if got.Route.AmountIn.Int64() != 10_000 || got.Route.AmountOut.Int64() != 9_970 {
		t.Errorf("amounts should survive the round trip, got %s/%s", got.Route.AmountIn, got.Route.AmountOut)
	}
	if got.Status != bridge.TransferStatusPending {
		t.Errorf("unexpected status %s", got.Status)
	}
	if !got.CompletedAt.IsZero() {
		t.Errorf("pending transfer must have no completion time, got %s", got.CompletedAt)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestStore_ConfirmAndUpdateStatus(t *testing.T) {
	ctx, store := setupStore(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, storedTransfer("t1", t0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := store.Confirm(ctx, "t1", "adapter-42"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != bridge.TransferStatusConfirmed || got.AdapterTransferID != "adapter-42" {
		t.Errorf("Confirm should set status and adapter id, got %s/%s", got.Status, got.AdapterTransferID)
	}

	done := t0.Add(10 * time.Minute)
	if err := store.UpdateStatus(ctx, "t1", bridge.TransferStatusCompleted, done); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ = store.Get(ctx, "t1")
	if got.Status != bridge.TransferStatusCompleted || !got.CompletedAt.Equal(done) {
		t.Errorf("terminal update should stamp completed_at, got %s/%s", got.Status, got.CompletedAt)
	}

	// A zero completion time leaves the existing stamp alone.
	if err := store.UpdateStatus(ctx, "t1", bridge.TransferStatusRefunded, time.Time{}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ = store.Get(ctx, "t1")
	if !got.CompletedAt.Equal(done) {
		t.Errorf("zero completion time must not overwrite the stamp, got %s", got.CompletedAt)
	}

	if err := store.Confirm(ctx, "missing", "x"); !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("Confirm: expected ErrTransferNotFound, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "missing", bridge.TransferStatusFailed, done); !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("UpdateStatus: expected ErrTransferNotFound, got %v", err)
	}
}

func TestStore_HistoryAndPending(t *testing.T) {
	ctx, store := setupStore(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		if err := store.Append(ctx, storedTransfer(id, t0.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append %s failed: %v", id, err)
		}
	}
	if err := store.UpdateStatus(ctx, "t2", bridge.TransferStatusCompleted, t0.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	history, err := store.History(ctx, testSender, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || history[0].ID != "t3" || history[1].ID != "t2" {
		t.Errorf("history should be newest first and limited, got %d entries", len(history))
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "t1" || pending[1].ID != "t3" {
		t.Errorf("pending should exclude terminal entries, oldest first, got %d entries", len(pending))
	}
}
