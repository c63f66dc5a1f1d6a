package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// candidatesCmd represents the candidates command
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "후보 종목 조회/선정",
	Long: `언급 빈도 기반 후보 종목을 조회하거나 선정합니다.

Subcommands:
  list    - 오늘 기준 랭킹 (저장 안 함)
  select  - 배치 선정 (우선순위 갱신 저장)

Example:
  go run ./cmd/stockcast candidates list --limit 20
  go run ./cmd/stockcast candidates select -n 5`,
}

var (
	candidatesListCmd = &cobra.Command{
		Use:   "list",
		Short: "후보 랭킹",
		RunE:  runCandidatesList,
	}

	candidatesSelectCmd = &cobra.Command{
		Use:   "select",
		Short: "배치 선정",
		RunE:  runCandidatesSelect,
	}

	candidatesLimit int
	selectN         int
)

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesListCmd)
	candidatesCmd.AddCommand(candidatesSelectCmd)

	candidatesListCmd.Flags().IntVar(&candidatesLimit, "limit", 30, "표시할 최대 종목 수")
	candidatesSelectCmd.Flags().IntVarP(&selectN, "count", "n", 0, "선정 개수 (기본: BATCH_SIZE)")
}

func runCandidatesList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ranked, err := a.selector.Rank(context.Background(), a.today())
	if err != nil {
		return err
	}

	widths := []int{4, 8, 8, 8, 8, 20}
	PrintTableHeader([]string{"#", "Ticker", "Mentions", "Priority", "Score", "Status"}, widths)
	for i, r := range ranked {
		if i >= candidatesLimit {
			break
		}
		status := "eligible"
		if !r.Eligible {
			status = r.Reason
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			r.State.Ticker,
			fmt.Sprintf("%d", r.State.MentionFrequency),
			fmt.Sprintf("%d", r.State.Priority),
			fmt.Sprintf("%.1f", r.Score),
			status,
		}, widths)
	}
	fmt.Printf("\n%d tickers considered\n", len(ranked))
	return nil
}

func runCandidatesSelect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n := selectN
	if n <= 0 {
		n = a.cfg.Daemon.BatchSize
	}

	selected, err := a.selector.Select(context.Background(), a.today(), n)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		PrintInfo("No eligible candidates")
		return nil
	}

	items := make([]string, 0, len(selected))
	for _, s := range selected {
		items = append(items, fmt.Sprintf("%s (mentions %d, priority %d)", s.Ticker, s.MentionFrequency, s.Priority))
	}
	PrintNumberedList(items)
	return nil
}
