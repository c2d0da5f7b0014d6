package db

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// TransferRecord maps one ledger entry to the 'transfers' table. The route is
// flattened; adapter-specific opaque data rides along as bytes.
type TransferRecord struct {
	bun.BaseModel `bun:"table:transfers"`

	ID                string `bun:"id,pk"`
	AdapterTransferID string `bun:"adapter_transfer_id"`

	Sender      string    `bun:"sender,notnull"`
	Recipient   string    `bun:"recipient,notnull"`
	Adapter     string    `bun:"adapter,notnull"`
	TokenIn     string    `bun:"token_in,notnull"`
	TokenOut    string    `bun:"token_out,notnull"`
	AmountIn    string    `bun:"amount_in,notnull"`
	AmountOut   string    `bun:"amount_out,notnull"`
	GasCost     string    `bun:"gas_cost"`
	SrcChain    string    `bun:"src_chain,notnull"`
	DstChain    string    `bun:"dst_chain,notnull"`
	AdapterData []byte    `bun:"adapter_data"`
	Deadline    time.Time `bun:"deadline"`

	Status      bridge.TransferStatus `bun:"status,notnull"`
	InitiatedAt time.Time             `bun:"initiated_at,notnull"`
	CompletedAt *time.Time            `bun:"completed_at"`
}

// toRecord flattens a domain transfer into its table row.
func toRecord(t *bridge.Transfer) *TransferRecord {
	rec := &TransferRecord{
		ID:                t.ID,
		AdapterTransferID: t.AdapterTransferID,
		Sender:            t.Sender.Hex(),
		Recipient:         t.Recipient.Hex(),
		Adapter:           t.Route.AdapterName,
		TokenIn:           t.Route.TokenIn,
		TokenOut:          t.Route.TokenOut,
		AmountIn:          t.Route.AmountIn.String(),
		AmountOut:         t.Route.AmountOut.String(),
		SrcChain:          t.Route.SrcChain,
		DstChain:          t.Route.DstChain,
		AdapterData:       t.Route.AdapterData,
		Deadline:          t.Route.Deadline,
		Status:            t.Status,
		InitiatedAt:       t.InitiatedAt,
	}
	if t.Route.Metrics.EstimatedGasCost != nil {
		rec.GasCost = t.Route.Metrics.EstimatedGasCost.String()
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec
}

// toTransfer rehydrates a table row into a domain transfer.
func (rec *TransferRecord) toTransfer() *bridge.Transfer {
	amountIn, _ := new(big.Int).SetString(rec.AmountIn, 10)
	amountOut, _ := new(big.Int).SetString(rec.AmountOut, 10)

	t := &bridge.Transfer{
		ID:                rec.ID,
		AdapterTransferID: rec.AdapterTransferID,
		Sender:            common.HexToAddress(rec.Sender),
		Recipient:         common.HexToAddress(rec.Recipient),
		Route: &bridge.Route{
			AdapterName: rec.Adapter,
			TokenIn:     rec.TokenIn,
			TokenOut:    rec.TokenOut,
			AmountIn:    amountIn,
			AmountOut:   amountOut,
			SrcChain:    rec.SrcChain,
			DstChain:    rec.DstChain,
			AdapterData: rec.AdapterData,
			Deadline:    rec.Deadline,
		},
		Status:      rec.Status,
		InitiatedAt: rec.InitiatedAt,
	}
	// The quote is not stored in full; the gas cost survives the round trip
	// because terminal resolutions feed it back into adapter statistics.
	if gasCost, ok := new(big.Int).SetString(rec.GasCost, 10); ok {
		t.Route.Metrics.EstimatedGasCost = gasCost
	}
	if rec.CompletedAt != nil {
		t.CompletedAt = *rec.CompletedAt
	}
	return t
}
