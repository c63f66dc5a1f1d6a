package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/stockcast/internal/contracts"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict [ticker]",
	Short: "저장된 모델로 예측",
	Long: `저장된 artifact로 최대 12 영업일 종가를 예측하고 저장합니다.

Example:
  go run ./cmd/stockcast predict AAPL
  go run ./cmd/stockcast predict AAPL --days 5
  go run ./cmd/stockcast predict AAPL --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

var (
	predictDays   int
	predictDryRun bool
)

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().IntVar(&predictDays, "days", contracts.MaxHorizon, "예측 영업일 수 (1-12)")
	predictCmd.Flags().BoolVar(&predictDryRun, "dry-run", false, "DB에 저장하지 않음")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ticker := strings.ToUpper(args[0])

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	var run *contracts.ForecastRun
	if predictDryRun {
		run, err = a.forecaster.Rollout(ctx, ticker, predictDays)
	} else {
		run, err = a.forecaster.Forecast(ctx, ticker, predictDays)
	}
	if err != nil {
		return fmt.Errorf("predict %s: %w", ticker, err)
	}

	printRun(run)
	if predictDryRun {
		PrintInfo("Dry run: nothing saved")
	}
	return nil
}

func printRun(run *contracts.ForecastRun) {
	PrintDoubleSeparator()
	fmt.Printf("  %s forecast (made %s)\n", run.Ticker, run.MadeOn.Format("2006-01-02"))
	PrintSeparator()
	PrintKeyValue("Reference", fmt.Sprintf("%s  %.2f", run.ReferenceDate.Format("2006-01-02"), run.ReferencePrice), 10)
	PrintKeyValue("Trained", run.ModelTrainedAt.Format("2006-01-02 15:04"), 10)
	fmt.Println()

	widths := []int{4, 12, 12, 9}
	PrintTableHeader([]string{"Day", "Target", "Predicted", "Change"}, widths)
	for _, f := range run.Forecasts {
		change := (f.PredictedPrice/run.ReferencePrice - 1) * 100
		PrintTableRow([]string{
			fmt.Sprintf("%d", f.HorizonDay),
			f.TargetDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", f.PredictedPrice),
			fmt.Sprintf("%+.2f%%", change),
		}, widths)
	}
}
