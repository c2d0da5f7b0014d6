// Package db persists the transfer ledger. Records are append-only; status
// transitions are the only mutation and terminal states stamp completed_at.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

var ErrTransferNotFound = errors.New("transfer not found")

// Store is the PostgreSQL transfer ledger.
type Store struct {
	db *bun.DB
}

// NewStore creates the ledger store on an existing bun connection.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Append inserts a new ledger entry.
func (s *Store) Append(ctx context.Context, t *bridge.Transfer) error {
	_, err := s.db.NewInsert().
		Model(toRecord(t)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("append transfer: %w", err)
	}
	return nil
}

// Confirm records the adapter's transfer id and moves the entry to CONFIRMED.
func (s *Store) Confirm(ctx context.Context, id, adapterTransferID string) error {
	res, err := s.db.NewUpdate().
		Model((*TransferRecord)(nil)).
		Set("status = ?", bridge.TransferStatusConfirmed).
		Set("adapter_transfer_id = ?", adapterTransferID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("confirm transfer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// UpdateStatus transitions a ledger entry. A non-zero completedAt stamps the
// completion time; pass the zero time for non-terminal transitions.
func (s *Store) UpdateStatus(ctx context.Context, id string, status bridge.TransferStatus, completedAt time.Time) error {
	q := s.db.NewUpdate().
		Model((*TransferRecord)(nil)).
		Set("status = ?", status).
		Where("id = ?", id)
	if !completedAt.IsZero() {
		q = q.Set("completed_at = ?", completedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// Get returns one ledger entry by id.
func (s *Store) Get(ctx context.Context, id string) (*bridge.Transfer, error) {
	rec := new(TransferRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return rec.toTransfer(), nil
}

// History returns a sender's transfers, newest first, up to limit.
func (s *Store) History(ctx context.Context, sender common.Address, limit int) ([]*bridge.Transfer, error) {
	var recs []*TransferRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("sender = ?", sender.Hex()).
		Order("initiated_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("transfer history: %w", err)
	}

	out := make([]*bridge.Transfer, len(recs))
	for i, rec := range recs {
		out[i] = rec.toTransfer()
	}
	return out, nil
}

// Pending returns entries that have not reached a terminal state, oldest first.
func (s *Store) Pending(ctx context.Context) ([]*bridge.Transfer, error) {
	var recs []*TransferRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("status IN (?)", bun.In([]bridge.TransferStatus{
			bridge.TransferStatusPending,
			bridge.TransferStatusConfirmed,
		})).
		Order("initiated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending transfers: %w", err)
	}

	out := make([]*bridge.Transfer, len(recs))
	for i, rec := range recs {
		out[i] = rec.toTransfer()
	}
	return out, nil
}
