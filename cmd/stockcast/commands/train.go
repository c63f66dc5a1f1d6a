package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train [ticker...]",
	Short: "종목 모델 학습",
	Long: `지정한 종목의 전체 종가 이력으로 LSTM을 학습하고 artifact를 저장합니다.

Example:
  go run ./cmd/stockcast train AAPL
  go run ./cmd/stockcast train AAPL MSFT NVDA`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for i, ticker := range args {
		ticker = strings.ToUpper(ticker)
		start := time.Now()

		artifact, err := a.training.TrainTicker(ctx, ticker)
		if err != nil {
			failed++
			PrintError(fmt.Sprintf("%s: %v", ticker, err))
			continue
		}

		PrintProgress("Train", fmt.Sprintf("%s: %d windows, %d epochs (best %d), loss %.6f in %.1fs",
			ticker, artifact.Windows, artifact.EpochsRun, artifact.BestEpoch, artifact.FinalLoss,
			time.Since(start).Seconds()), i+1, len(args))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tickers failed", failed, len(args))
	}
	PrintSuccess(fmt.Sprintf("Artifacts saved to %s", a.artifacts.Dir()))
	return nil
}
