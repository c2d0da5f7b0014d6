package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// MemoryLedger is an in-memory ledger used in tests and single-process runs.
// It keeps an arena of records plus a per-sender index of ids.
type MemoryLedger struct {
	mu       sync.RWMutex
	records  map[string]*bridge.Transfer
	bySender map[common.Address][]string
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records:  make(map[string]*bridge.Transfer),
		bySender: make(map[common.Address][]string),
	}
}

// Append inserts a new ledger entry.
func (l *MemoryLedger) Append(_ context.Context, t *bridge.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *t
	l.records[t.ID] = &cp
	l.bySender[t.Sender] = append(l.bySender[t.Sender], t.ID)
	return nil
}

// Confirm records the adapter's transfer id and moves the entry to CONFIRMED.
func (l *MemoryLedger) Confirm(_ context.Context, id, adapterTransferID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.records[id]
	if !ok {
		return ErrTransferNotFound
	}
	t.AdapterTransferID = adapterTransferID
	t.Status = bridge.TransferStatusConfirmed
	return nil
}

// UpdateStatus transitions a ledger entry.
func (l *MemoryLedger) UpdateStatus(_ context.Context, id string, status bridge.TransferStatus, completedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.records[id]
	if !ok {
		return ErrTransferNotFound
	}
	t.Status = status
	if !completedAt.IsZero() {
		t.CompletedAt = completedAt
	}
	return nil
}

// Get returns one ledger entry by id.
func (l *MemoryLedger) Get(_ context.Context, id string) (*bridge.Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.records[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

// History returns a sender's transfers, newest first, up to limit.
func (l *MemoryLedger) History(_ context.Context, sender common.Address, limit int) ([]*bridge.Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.bySender[sender]
	out := make([]*bridge.Transfer, 0, len(ids))
	for _, id := range ids {
		cp := *l.records[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InitiatedAt.After(out[j].InitiatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Pending returns entries that have not reached a terminal state, oldest first.
func (l *MemoryLedger) Pending(_ context.Context) ([]*bridge.Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*bridge.Transfer
	for _, t := range l.records {
		if t.Status == bridge.TransferStatusPending || t.Status == bridge.TransferStatusConfirmed {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InitiatedAt.Before(out[j].InitiatedAt)
	})
	return out, nil
}
