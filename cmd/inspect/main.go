package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/feltcore/dae/internal/assoc"
	"github.com/feltcore/dae/internal/cluster"
	"github.com/feltcore/dae/internal/entity"
	"github.com/feltcore/dae/internal/logging"
	"github.com/feltcore/dae/internal/persist"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to dae.db")
	last := flag.Int("last", 20, "show N most recent turns")
	clusters := flag.Bool("clusters", false, "list the cluster set")
	entityID := flag.String("entity", "", "show top co-occurrence edges for one entity")
	organSuccess := flag.Bool("organ-success", false, "show decay-weighted outcome quality per organ")
	halfLife := flag.Float64("half-life", 168, "outcome decay half-life in hours")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/dae.db [--last N] [--clusters] [--entity id] [--organ-success] [--json]")
		os.Exit(2)
	}

	store, err := persist.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *clusters:
		err = runClusterMode(store, *jsonOut)
	case *entityID != "":
		err = runEntityMode(store, *entityID, *jsonOut)
	case *organSuccess:
		err = runOrganSuccessMode(store, *halfLife, *jsonOut)
	default:
		err = runTurnMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region turn-mode

func runTurnMode(store *persist.SQLiteStore, last int, jsonOut bool) error {
	entries, err := logging.RecentTurns(store.DB(), last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no turns logged")
		return nil
	}
	if jsonOut {
		return printJSON(entries)
	}

	fmt.Printf("%-10s  %-12s  %5s  %-3s  %6s  %6s  %6s  %-10s  %s\n",
		"Turn", "Category", "Conf", "K", "Cycles", "Energy", "Sat", "Cluster", "Time")
	for _, e := range entries {
		k := "-"
		if e.Kairos {
			k = "K"
		}
		c := shortID(e.ClusterID)
		if e.CreatedNew {
			c += "*"
		}
		fmt.Printf("%-10s  %-12s  %.3f  %-3s  %6d  %.4f  %.4f  %-10s  %s\n",
			shortID(e.TurnID), e.Category, e.Confidence, k, e.Cycles,
			e.Energy, e.Satisfaction, c, e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion turn-mode

// #region cluster-mode

type clusterRow struct {
	ID               string  `json:"id"`
	MemberCount      int     `json:"member_count"`
	MeanSatisfaction float64 `json:"mean_satisfaction"`
	DominantDims     []int   `json:"dominant_dims"`
	CreatedAt        string  `json:"created_at"`
}

func runClusterMode(store *persist.SQLiteStore, jsonOut bool) error {
	// Clusters live in the snapshot store, not a table of their own.
	assignor := cluster.Load(store, "clusters", cluster.DefaultConfig())
	all := assignor.All()
	if len(all) == 0 {
		fmt.Fprintln(os.Stderr, "no clusters")
		return nil
	}

	rows := make([]clusterRow, len(all))
	for i, c := range all {
		rows[i] = clusterRow{
			ID:               c.ID,
			MemberCount:      c.MemberCount,
			MeanSatisfaction: c.MeanSatisfaction,
			DominantDims:     c.DominantDims(5),
			CreatedAt:        c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %7s  %8s  %-20s  %s\n", "Cluster", "Members", "MeanSat", "Dominant dims", "Created")
	for _, r := range rows {
		fmt.Printf("%-10s  %7d  %.4f  %-20v  %s\n",
			shortID(r.ID), r.MemberCount, r.MeanSatisfaction, r.DominantDims, r.CreatedAt)
	}
	return nil
}

// #endregion cluster-mode

// #region entity-mode

func runEntityMode(store *persist.SQLiteStore, entityID string, jsonOut bool) error {
	edges, err := entity.NewCoOccurStore(store.DB())
	if err != nil {
		return err
	}
	top, err := edges.Top(entityID, 20)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Fprintln(os.Stderr, "no edges for entity")
		return nil
	}
	if jsonOut {
		return printJSON(top)
	}

	fmt.Printf("%-20s  %-20s  %6s  %s\n", "Source", "Target", "Count", "Updated")
	for _, e := range top {
		fmt.Printf("%-20s  %-20s  %6d  %s\n",
			e.SourceID, e.TargetID, e.Count, e.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion entity-mode

// #region organ-success-mode

func runOrganSuccessMode(store *persist.SQLiteStore, halfLifeHours float64, jsonOut bool) error {
	outcomes, err := assoc.NewOutcomeLog(store.DB())
	if err != nil {
		return err
	}
	success, err := outcomes.SuccessByOrgan(halfLifeHours)
	if err != nil {
		return err
	}
	if len(success) == 0 {
		fmt.Fprintln(os.Stderr, "not enough outcome samples")
		return nil
	}
	if jsonOut {
		return printJSON(success)
	}

	fmt.Printf("%-12s  %s\n", "Organ", "Success")
	for _, id := range sortedKeys(success) {
		fmt.Printf("%-12s  %.4f\n", id, success[id])
	}
	return nil
}

// #endregion organ-success-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion output
