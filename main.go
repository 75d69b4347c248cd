package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spotmap/spotmap/config"
	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/routes"
	"github.com/spotmap/spotmap/utils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spotmap",
		Short:         "Geotagged audio spots with posting streaks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset-streaks",
		Short: "Reset streaks of users who did not post today or yesterday",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := bootstrap()
			if err != nil {
				return err
			}
			n, err := svc.Streaks.ResetInactive(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d streaks\n", n)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep-uploads",
		Short: "Delete uploads that were never attached to a spot or journey",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := bootstrap()
			if err != nil {
				return err
			}
			n, err := svc.Uploads.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned uploads\n", n)
			return nil
		},
	})
	return cmd
}

func bootstrap() (*routes.Services, error) {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return nil, err
	}
	db := config.InitDatabase(models.All()...)
	utils.InitRedis(cfg)
	return routes.BuildServices(db, cfg)
}

func serve() error {
	svc, err := bootstrap()
	if err != nil {
		return err
	}
	cfg := config.Get()
	defer utils.Logger.Sync()

	jobs, stop := context.WithCancel(context.Background())
	defer stop()
	utils.RunPeriodic(jobs, "streak-reset", time.Duration(cfg.StreakResetIntervalMinutes)*time.Minute, func(ctx context.Context) error {
		_, err := svc.Streaks.ResetInactive(ctx)
		return err
	})
	utils.RunPeriodic(jobs, "upload-sweep", 5*time.Minute, func(ctx context.Context) error {
		n, err := svc.Uploads.Sweep(ctx)
		if n > 0 {
			utils.Logger.Info("orphaned uploads removed", zap.Int("count", n))
		}
		return err
	})

	r := routes.SetupRouter(svc)
	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	return utils.GraceServer(":"+cfg.AppPort, r, stop)
}
