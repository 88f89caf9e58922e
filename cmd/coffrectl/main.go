package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"coffre/internal/config"
	"coffre/internal/logger"
	"coffre/internal/services/filestore"
	"coffre/internal/services/ledger"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "coffrectl",
		Short:         "Operational tooling for the coffre backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	openChain := func(ctx context.Context) (*ledger.Service, error) {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is empty")
		}
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		return ledger.Open(ctx, ledger.NewGormStore(db), lg)
	}

	root.AddCommand(&cobra.Command{
		Use:   "verify-chain",
		Short: "Recompute every block hash and check chain linkage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chain, err := openChain(ctx)
			if err != nil {
				return err
			}
			valid, err := chain.Valid(ctx)
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("chain is INVALID: at least one block fails hash or linkage checks")
			}
			tip := chain.Tip()
			fmt.Printf("chain valid, %d blocks, tip hash %s\n", tip.Index+1, tip.Hash)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "history <document-id>",
		Short: "Print the anchored ledger events for one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chain, err := openChain(ctx)
			if err != nil {
				return err
			}
			events, err := chain.DocumentHistory(ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("no ledger events for this document")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s  block=%d  %-18s  user=%s  hash=%s\n",
					ev.Timestamp.Format(time.RFC3339), ev.BlockIndex,
					ev.Transaction.Action, ev.Transaction.UserID, ev.Transaction.Hash)
			}
			return nil
		},
	})

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete staged upload files older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := filestore.New(cfg.UploadDir, cfg.TempDir, cfg.BaseURL)
			n, err := files.CleanupTempFiles(cfg.TempMaxAge)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d temp file(s)\n", n)
			return nil
		},
	}
	root.AddCommand(cleanup)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "coffrectl:", err)
		os.Exit(1)
	}
}
