package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	"github.com/feltcore/dae/internal/config"
	"github.com/feltcore/dae/internal/orchestrator"
	"github.com/feltcore/dae/internal/organ"
	"github.com/feltcore/dae/internal/persist"
)

// #region main
func main() {
	_ = godotenv.Load(".env")

	configPath := flag.String("config", os.Getenv("DAE_CONFIG"), "path to YAML config file")
	sessionID := flag.String("session", "default", "session identifier")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := persist.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	registry := organ.NewRegistry()
	if err := organ.RegisterBuiltins(registry); err != nil {
		log.Fatalf("register organs: %v", err)
	}

	engine, err := orchestrator.New(cfg, store, registry, store.DB())
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}
	defer engine.Close()

	fmt.Println("DAE decision engine ready.")
	fmt.Printf("  DB: %s | session: %s\n", cfg.DBPath, *sessionID)
	fmt.Println("Type a turn; mention entities as @name. Commands: :rate <0..1>, :stats, :save, :quit")

	runREPL(engine, *sessionID)
}

// #endregion main

// #region repl
func runREPL(engine *orchestrator.Engine, sessionID string) {
	rl, err := readline.New("dae> ")
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rl.Close()

	ctx := context.Background()
	var pendingQuality *float64

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			break
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ":") {
			if handleCommand(engine, input, &pendingQuality) {
				break
			}
			continue
		}

		result, err := engine.ProcessTurn(ctx, orchestrator.TurnInput{
			SessionID: sessionID,
			Unit: organ.Unit{
				Text:      input,
				EntityIDs: extractEntities(input),
			},
			OutcomeQuality: pendingQuality,
		})
		pendingQuality = nil
		if err != nil {
			log.Printf("turn error: %v", err)
			continue
		}

		kairos := ""
		if result.Kairos {
			kairos = " kairos"
		}
		cluster := result.ClusterID
		if len(cluster) > 8 {
			cluster = cluster[:8]
		}
		if result.CreatedNewCluster {
			cluster += "*"
		}
		fmt.Printf("[%s] %s (conf %.2f%s) energy=%.3f sat=%.3f cycles=%d cluster=%s\n",
			shortID(result.TurnID), result.Category, result.Confidence, kairos,
			result.Energy, result.Satisfaction, result.CyclesUsed, cluster)
	}
}

// handleCommand runs a colon command; returns true when the REPL should exit.
func handleCommand(engine *orchestrator.Engine, input string, pendingQuality **float64) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case ":quit", ":exit":
		return true
	case ":save":
		if err := engine.Save(); err != nil {
			log.Printf("save error: %v", err)
		} else {
			fmt.Println("saved")
		}
	case ":rate":
		if len(fields) < 2 {
			fmt.Println("usage: :rate <0..1>")
			return false
		}
		q, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || q < 0 || q > 1 {
			fmt.Println("rate must be a number in [0,1]")
			return false
		}
		*pendingQuality = &q
		fmt.Printf("next turn will carry outcome quality %.2f\n", q)
	case ":stats":
		fmt.Printf("clusters: %d, association pairs: %d\n",
			engine.Clusters().Len(), engine.Memory().Pairs())
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}

// #endregion repl

// #region helpers
// extractEntities pulls @name mentions out of the turn text.
func extractEntities(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(text) {
		if !strings.HasPrefix(tok, "@") || len(tok) < 2 {
			continue
		}
		id := strings.ToLower(strings.TrimFunc(tok[1:], func(r rune) bool {
			return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '_' || r == '-')
		}))
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion helpers
