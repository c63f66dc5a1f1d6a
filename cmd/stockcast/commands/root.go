package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockcast",
	Short: "stockcast - 종목별 LSTM 종가 예측",
	Long: `stockcast Unified CLI

뉴스 언급 빈도로 후보 종목을 고르고, 종목별 LSTM을 학습해
최대 12 영업일 종가를 예측하는 데몬과 운영 도구.

Usage:
  go run ./cmd/stockcast [command]

Examples:
  go run ./cmd/stockcast daemon start
  go run ./cmd/stockcast train AAPL
  go run ./cmd/stockcast predict AAPL --days 5
  go run ./cmd/stockcast candidates list
  go run ./cmd/stockcast test-db`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := os.Setenv("ENV_FILE", envFile); err != nil {
				return err
			}
		}
		if verbose {
			return os.Setenv("LOG_LEVEL", "debug")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
