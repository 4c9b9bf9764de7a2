package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/alphatilt/internal/persistence"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print persisted regime and portfolio state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := context.Background()
			out := struct {
				Regime    *persistence.RegimeStatus         `json:"regime,omitempty"`
				Portfolio *persistence.PortfolioTargetState `json:"portfolio,omitempty"`
			}{}

			out.Regime, err = store.LoadRegime(ctx)
			if err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("load regime status: %w", err)
			}
			out.Portfolio, err = store.LoadPortfolio(ctx)
			if err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("load portfolio state: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
