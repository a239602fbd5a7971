package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/basel-ax/fitroom/internal/config"
	"github.com/basel-ax/fitroom/internal/repository"
	"github.com/basel-ax/fitroom/internal/service"
)

func pruneCmd(opts *rootOptions) *cobra.Command {
	var days int

	c := &cobra.Command{
		Use:   "prune",
		Short: "Delete try-on history older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMaintenance()
			if err != nil {
				return err
			}
			if !cfg.DB.Enabled() {
				return fmt.Errorf("prune needs a database, set DB_HOST")
			}
			retention := cfg.HistoryRetention
			if days > 0 {
				retention = time.Duration(days) * 24 * time.Hour
			}

			log := opts.logger(cfg)
			st, err := openStores(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := service.NewHistoryPruner(st.history, retention, log).PruneOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d history entries\n", n)
			return nil
		},
	}

	c.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to HISTORY_RETENTION_DAYS)")
	return c
}

func seedCmd(opts *rootOptions) *cobra.Command {
	var file string

	c := &cobra.Command{
		Use:   "seed",
		Short: "Upsert garments and recommendations from a YAML catalog file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMaintenance()
			if err != nil {
				return err
			}
			if !cfg.DB.Enabled() {
				return fmt.Errorf("seed needs a database, set DB_HOST")
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			catalog, err := repository.LoadCatalog(f)
			if err != nil {
				return err
			}

			log := opts.logger(cfg)
			st, err := openStores(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			garments, err := repository.SeedGarments(cmd.Context(), st.garments, catalog.Garments)
			if err != nil {
				return err
			}
			recs, err := repository.SeedRecommendations(cmd.Context(), st.recommendations, catalog.Recommendations)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d garments and %d recommendations\n", garments, recs)
			return nil
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "YAML catalog file (required)")
	_ = c.MarkFlagRequired("file")
	return c
}
