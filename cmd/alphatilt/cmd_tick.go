package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/alphatilt/internal/application"
	"github.com/sawpanic/alphatilt/internal/artifacts"
	"github.com/sawpanic/alphatilt/internal/cache"
	"github.com/sawpanic/alphatilt/internal/domain/volatility"
	"github.com/sawpanic/alphatilt/internal/metrics"
)

func newTickCmd() *cobra.Command {
	var (
		asOfStr       string
		scoresPath    string
		pricesPath    string
		benchmarkPath string
		vixLevel      float64
		sectorReturn  float64
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one evaluation tick",
		Long: `Run one evaluation tick against materialized score, price, and regime
inputs. On the rebalance weekday this recomputes target weights; on other
days only regime monitoring and the emergency brake run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			asOf, err := time.Parse("2006-01-02", asOfStr)
			if err != nil {
				return fmt.Errorf("parse --as-of: %w", err)
			}

			input := application.TickInput{
				AsOf:              asOf,
				VIXLevel:          vixLevel,
				SectorDailyReturn: sectorReturn,
			}
			if err := readJSONFile(scoresPath, &input.Scores); err != nil {
				return err
			}
			if err := readJSONFile(pricesPath, &input.Prices); err != nil {
				return err
			}
			var benchmark []volatility.PricePoint
			if err := readJSONFile(benchmarkPath, &benchmark); err != nil {
				return err
			}
			input.BenchmarkCloses = make([]float64, len(benchmark))
			for i, p := range benchmark {
				input.BenchmarkCloses[i] = p.Close
			}

			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			opts := []application.Option{
				application.WithArtifacts(artifacts.NewWriter(cfg.Artifacts.Dir)),
				application.WithMetrics(metrics.NewRegistry()),
			}
			if cfg.Store.RedisAddr != "" {
				statusCache := cache.NewStatusCache(cfg.Store.RedisAddr, cfg.Store.RedisTTLDuration())
				defer statusCache.Close()
				opts = append(opts, application.WithStatusCache(statusCache))
			}

			engine, err := application.NewEngine(cfg, store, opts...)
			if err != nil {
				return err
			}

			result, err := engine.RunTick(context.Background(), input)
			if err != nil {
				return fmt.Errorf("tick failed, prior state retained: %w", err)
			}

			log.Info().
				Str("outcome", string(result.Outcome)).
				Str("audit", result.AuditPath).
				Msg("tick finished")
			fmt.Println(result.Outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&asOfStr, "as-of", "", "Evaluation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&scoresPath, "scores", "", "JSON file: symbol -> alpha score")
	cmd.Flags().StringVar(&pricesPath, "prices", "", "JSON file: symbol -> [{date, close}]")
	cmd.Flags().StringVar(&benchmarkPath, "benchmark", "", "JSON file: benchmark [{date, close}] series")
	cmd.Flags().Float64Var(&vixLevel, "vix", 0, "Volatility index level")
	cmd.Flags().Float64Var(&sectorReturn, "sector-return", 0, "Sector proxy daily return (e.g. -0.03)")
	cmd.MarkFlagRequired("as-of")
	cmd.MarkFlagRequired("scores")
	cmd.MarkFlagRequired("prices")
	cmd.MarkFlagRequired("benchmark")

	return cmd
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
