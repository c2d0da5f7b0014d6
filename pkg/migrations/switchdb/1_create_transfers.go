package switchdb

import (
	"context"
	"log"

	"github.com/chainsafe/settlement-switch/pkg/db"
	mghelper "github.com/chainsafe/settlement-switch/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, bdb *bun.DB) error {
		log.Println("creating transfers table...")
		if err := mghelper.CreateSchema(ctx, bdb, &db.TransferRecord{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, bdb, &db.TransferRecord{}, "sender", "status", "initiated_at")
	}, func(ctx context.Context, bdb *bun.DB) error {
		log.Println("dropping transfers table...")
		return mghelper.DropTables(ctx, bdb, &db.TransferRecord{})
	})
}
