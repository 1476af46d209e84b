package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/feltcore/dae/internal/config"
	"github.com/feltcore/dae/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--config path/to/config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	results, summary, err := replay.Replay(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	os.Exit(printComparison(f.Description, results, summary))
}

// #endregion main

// #region output

// printComparison outputs the per-turn table and returns the exit code:
// 0 when every expectation matched, 1 otherwise.
func printComparison(description string, results []replay.Result, summary replay.Summary) int {
	if description != "" {
		fmt.Println(description)
	}

	fmt.Printf("%-12s| %-12s| %-12s| %-6s| %-6s| %s\n",
		"Turn", "Expected", "Replayed", "ExpK", "GotK", "Match")
	fmt.Printf("%-12s+%-13s+%-13s+%-7s+%-7s+%s\n",
		"------------", "-------------", "-------------", "-------", "-------", "------")

	for _, r := range results {
		exp := "-"
		expK := "-"
		match := "-"
		if r.HasExpectation {
			exp = r.ExpectedCategory
			expK = fmt.Sprintf("%v", r.ExpectedKairos)
			if r.Match {
				match = "OK"
			} else {
				match = "DIFF"
			}
		}
		fmt.Printf("%-12s| %-12s| %-12s| %-6s| %-6v| %s\n",
			r.TurnID, exp, string(r.Category), expK, r.Kairos, match)
	}

	fmt.Printf("\nSummary: %d turns, %d expectations, %d match, %d diverge\n",
		summary.TotalTurns, summary.Expectations, summary.Matches, summary.Mismatches)

	if summary.Mismatches > 0 {
		return 1
	}
	return 0
}

// #endregion output
