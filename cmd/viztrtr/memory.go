package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/viztrtr/viztrtr-core/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the persisted iteration-memory.json",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print score history, lessons, and component stats",
	RunE:  runMemoryShow,
}

var memoryAvoidListCmd = &cobra.Command{
	Use:   "avoid-list",
	Short: "Print components MemoryStore currently avoids",
	RunE:  runMemoryAvoidList,
}

func loadMemorySnapshot() (*memory.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	mem := memory.New(cfg.AbsOutputDir(), cfg.Memory)
	if err := mem.Load(); err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	return mem, nil
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	mem, err := loadMemorySnapshot()
	if err != nil {
		return err
	}
	defer mem.Close()
	snap := mem.Snapshot()

	fmt.Println("Score history")
	fmt.Println("=============")
	if len(snap.ScoreHistory) == 0 {
		fmt.Println("  (none yet)")
	}
	for _, e := range snap.ScoreHistory {
		fmt.Printf("  iteration %d: %.2f -> %.2f (%+.2f)%s\n", e.Iteration, e.BeforeScore, e.AfterScore, e.Delta, targetSuffix(e.TargetReached))
	}

	fmt.Println()
	fmt.Println("Lessons")
	fmt.Println("=======")
	if len(snap.Lessons) == 0 {
		fmt.Println("  (none yet)")
	}
	for _, l := range snap.Lessons {
		fmt.Printf("  iteration %d: %s\n", l.Iteration, l.Lesson)
	}

	fmt.Println()
	fmt.Println("Component stats")
	fmt.Println("================")
	if len(snap.ComponentStats) == 0 {
		fmt.Println("  (none yet)")
	}
	paths := make([]string, 0, len(snap.ComponentStats))
	for p := range snap.ComponentStats {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		s := snap.ComponentStats[p]
		avoid := ""
		if s.ShouldAvoid() {
			avoid = " [avoided]"
		}
		fmt.Printf("  %s: modified=%d failed=%d succeeded=%d last=%s%s\n", p, s.ModificationCount, s.FailureCount, s.SuccessCount, s.LastOutcome, avoid)
	}
	return nil
}

func runMemoryAvoidList(cmd *cobra.Command, args []string) error {
	mem, err := loadMemorySnapshot()
	if err != nil {
		return err
	}
	defer mem.Close()

	avoided := mem.GetAvoidedComponents()
	if len(avoided) == 0 {
		fmt.Println("No components are currently avoided.")
		return nil
	}
	for _, path := range avoided {
		fmt.Println(path)
	}
	return nil
}

func targetSuffix(reached bool) string {
	if reached {
		return " (target reached)"
	}
	return ""
}
