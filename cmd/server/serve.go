package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/pledge/internal/database"
	"github.com/blues/pledge/internal/ethereum"
	"github.com/blues/pledge/internal/event"
	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/logic"
	"github.com/blues/pledge/internal/metrics"
	"github.com/blues/pledge/internal/router"
	"github.com/blues/pledge/internal/task"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE:  serveRun,
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)
			logger.Info("Database schema migrated (%s)", cfg.Database.Driver)
			return nil
		},
	}
}

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark expired projects that missed their goal as failed and send pending transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			escrow, err := newEscrow(cmd.Context(), db, nil)
			if err != nil {
				return err
			}
			failed, err := escrow.Refunds.ExpireProjects(cmd.Context())
			if err != nil {
				return err
			}
			sent, err := escrow.Transfers.DisbursePending(cmd.Context(), cfg.Task.DisburseBatchSize)
			if err != nil {
				return err
			}
			logger.Info("Sweep completed. Failed %d projects, sent %d transfers", failed, sent)
			return nil
		},
	}
}

// newEscrow 组装托管核心并同步平台配置
func newEscrow(ctx context.Context, db *gorm.DB, m *metrics.Metrics) (*logic.Escrow, error) {
	tiers, err := cfg.Escrow.Tiers.Thresholds()
	if err != nil {
		return nil, err
	}

	var disburser logic.Disburser = logic.LedgerDisburser{}
	if cfg.Chain.Enabled {
		client, err := ethereum.Dial(ctx, cfg.Chain)
		if err != nil {
			return nil, err
		}
		chainDisburser, err := ethereum.NewDisburser(client, cfg.Chain.PrivateKey, cfg.Chain.GasLimit)
		if err != nil {
			return nil, err
		}
		logger.Info("On-chain payouts enabled from %s", chainDisburser.Address().Hex())
		disburser = chainDisburser
	}

	escrow := logic.New(db, logic.Options{
		Disburser: disburser,
		Metrics:   m,
		Tiers:     tiers,
	})
	if _, err := escrow.Platform.EnsurePlatform(ctx, common.HexToAddress(cfg.Escrow.Operator), cfg.Escrow.DefaultFeePercent); err != nil {
		return nil, err
	}
	return escrow, nil
}

func serveRun(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Init(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	escrow, err := newEscrow(ctx, db, m)
	if err != nil {
		return err
	}

	hub := event.NewHub(0)
	defer hub.Close()
	publisher := event.NewPublisher(escrow.Events, hub, m, cfg.Task.EventBatchSize)

	manager, err := task.NewManager(
		task.NewProjectExpiryJob(escrow.Refunds, time.Duration(cfg.Task.Interval)*time.Second),
		task.NewEventPublishJob(publisher, time.Duration(cfg.Task.EventInterval)*time.Second),
		task.NewDisburseJob(escrow.Transfers, time.Duration(cfg.Task.DisburseInterval)*time.Second, cfg.Task.DisburseBatchSize),
	)
	if err != nil {
		return err
	}
	if err := manager.RegisterJobs(); err != nil {
		return err
	}
	manager.Start()
	defer manager.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(escrow, hub, registry, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
