package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/stockcast/internal/forecast"
	"github.com/wonny/stockcast/internal/scheduler"
	"github.com/wonny/stockcast/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "유지보수 스케줄러",
	Long: `예측 데몬과 별도로 도는 유지보수 작업을 관리합니다.

등록되는 작업:
- forecast_retention: 매일 00:30 (오래된 예측 삭제)
- price_cache_warmup: 매일 00:01 (학습된 종목 가격 캐시 예열, 데몬과 같은 cache key)

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/stockcast scheduler start
  go run ./cmd/stockcast scheduler run forecast_retention`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func initScheduler(a *app) (*scheduler.Scheduler, error) {
	loc, err := a.cfg.Daemon.Location()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log, scheduler.WithLocation(loc))

	if err := sched.AddJob(jobs.NewRetentionJob(a.forecasts, a.cfg.Daemon.RetentionDays, loc, a.log)); err != nil {
		return nil, err
	}
	lookback := forecast.LookbackDays(a.cfg.Forecast.SequenceLength)
	if err := sched.AddJob(jobs.NewCacheWarmupJob(a.artifacts, a.history, lookback, loc, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockcast Scheduler ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	PrintList(sched.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		PrintKeyValue(name, stats[name].Schedule, 20)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunNow(context.Background(), jobName)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s (attempts=%d)", jobName, result.Duration, result.Attempts))
	if len(result.Counts) > 0 {
		PrintKeyValue("counts", result.Counts.String(), 20)
	}
	return nil
}
