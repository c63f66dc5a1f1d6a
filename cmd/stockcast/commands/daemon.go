package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockcast/internal/api"
	"github.com/wonny/stockcast/internal/daemon"
	"github.com/wonny/stockcast/internal/metrics"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "예측 데몬",
	Long: `후보 선정 → 학습 → 예측을 반복하는 스케줄링 데몬.

Subcommands:
  start  - 데몬 시작 (ops 서버 포함, Ctrl+C로 종료)
  once   - 한 사이클만 실행

Example:
  go run ./cmd/stockcast daemon start
  go run ./cmd/stockcast daemon once --batch 3`,
}

var (
	daemonStartCmd = &cobra.Command{
		Use:   "start",
		Short: "데몬 시작",
		RunE:  runDaemon,
	}

	daemonOnceCmd = &cobra.Command{
		Use:   "once",
		Short: "한 사이클 실행",
		RunE:  runDaemonOnce,
	}

	daemonBatch int
	daemonNoOps bool
)

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonOnceCmd)

	daemonCmd.PersistentFlags().IntVar(&daemonBatch, "batch", 0, "배치 크기 (기본: BATCH_SIZE)")
	daemonStartCmd.Flags().BoolVar(&daemonNoOps, "no-ops", false, "ops 서버(/health, /metrics, /status) 비활성화")
}

func buildDaemon(a *app, opts ...daemon.Option) (*daemon.Daemon, error) {
	cfg, err := a.daemonConfig()
	if err != nil {
		return nil, fmt.Errorf("daemon config: %w", err)
	}
	if daemonBatch > 0 {
		cfg.BatchSize = daemonBatch
	}
	return daemon.New(cfg, a.selector, a.candidates, a.training, a.forecaster, a.log.Zerolog(), opts...), nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockcast Daemon ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var rec *metrics.Recorder
	var opts []daemon.Option
	if a.cfg.MetricsEnabled {
		rec = metrics.New()
		opts = append(opts, daemon.WithRecorder(rec))
	}

	d, err := buildDaemon(a, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ops server (ctx 취소 시 함께 종료)
	opsDone := make(chan struct{})
	if !daemonNoOps {
		deps := api.Deps{DB: a.db, Status: d}
		if a.redis.Enabled() {
			deps.Cache = a.redis
		}
		if rec != nil {
			deps.Metrics = rec.Handler()
		}
		server := api.New(a.cfg, a.log, api.NewRouter(deps, a.log))
		go func() {
			defer close(opsDone)
			if err := server.Run(ctx); err != nil {
				a.log.WithError(err).Error("Ops server failed")
			}
		}()
		fmt.Printf("✅ Ops server on http://localhost:%s (/health, /metrics, /status)\n", a.cfg.Port)
	} else {
		close(opsDone)
	}

	fmt.Println("Press Ctrl+C to stop")
	runErr := d.Run(ctx)

	stop()
	<-opsDone

	fmt.Println("Daemon stopped")
	return runErr
}

func runDaemonOnce(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := buildDaemon(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	cycle, err := d.RunOnce(ctx)
	if err != nil {
		return err
	}

	if cycle.Paused && cycle.Summary == nil {
		PrintWarning(fmt.Sprintf("Quiet hours: paused for %s", cycle.Sleep.Round(time.Second)))
		return nil
	}

	s := cycle.Summary
	PrintDoubleSeparator()
	fmt.Printf("  Batch %s (%s)\n", s.ID, s.Day.Format("2006-01-02"))
	PrintSeparator()
	if len(s.Selected) == 0 {
		PrintInfo("No eligible candidates")
	}
	for _, t := range s.Selected {
		if reason, failed := s.Failed[t]; failed {
			PrintError(fmt.Sprintf("%-8s %s", t, reason))
			continue
		}
		if contains(s.Processed, t) {
			PrintSuccess(t)
		} else {
			PrintInfo(fmt.Sprintf("%-8s deferred", t))
		}
	}
	PrintSeparator()
	fmt.Printf("  processed %d / selected %d in %.1fs, next sleep %s\n",
		len(s.Processed), len(s.Selected), time.Since(start).Seconds(), cycle.Sleep)
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
