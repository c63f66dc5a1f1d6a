package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/stockcast/internal/contracts"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [ticker]",
	Short: "홀드아웃 백테스트",
	Long: `마지막 N 영업일 종가를 떼어두고 나머지로 학습한 뒤
예측과 실제를 비교해 일별 APE와 MAPE를 출력합니다. 아무것도 저장하지 않습니다.

Example:
  go run ./cmd/stockcast evaluate AAPL
  go run ./cmd/stockcast evaluate AAPL --days 5`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

var evaluateDays int

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().IntVar(&evaluateDays, "days", contracts.MaxHorizon, "홀드아웃 영업일 수 (1-12)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.evaluator.Evaluate(ctx, args[0], evaluateDays)
	if err != nil {
		return err
	}

	PrintDoubleSeparator()
	fmt.Printf("  %s holdout (%d days)\n", report.Ticker, report.Horizon)
	PrintSeparator()
	PrintKeyValue("Train", fmt.Sprintf("%d closes, %d epochs, loss %.6f", report.TrainPoints, report.EpochsRun, report.FinalLoss), 10)
	PrintKeyValue("Reference", fmt.Sprintf("%s  %.2f", report.ReferenceDate.Format("2006-01-02"), report.ReferencePrice), 10)
	fmt.Println()

	widths := []int{4, 12, 10, 10, 8}
	PrintTableHeader([]string{"Day", "Date", "Actual", "Predicted", "APE"}, widths)
	for _, d := range report.Days {
		PrintTableRow([]string{
			fmt.Sprintf("%d", d.HorizonDay),
			d.Date.Format("2006-01-02"),
			fmt.Sprintf("%.2f", d.Actual),
			fmt.Sprintf("%.2f", d.Predicted),
			fmt.Sprintf("%.2f%%", d.APE),
		}, widths)
	}
	PrintSeparator()
	fmt.Printf("  MAPE: %.2f%%\n", report.MAPE)
	return nil
}
