package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/di"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Report error: %v\n", err)
		os.Exit(1)
	}
}

// run prints the subject-matching assessment and the reputation tables
func run(flags *di.CLIFlags, logger *zap.Logger, store core.MessageStore, svc *core.TriageService) error {
	defer logger.Sync()
	defer store.Close()

	report, err := svc.BuildReport(context.Background(), flags.MaxGap)
	if err != nil {
		return err
	}

	fmt.Printf("=== Subject matching ===\n")
	if report.ROCErr != nil {
		fmt.Printf("Unavailable: %v\n", report.ROCErr)
	} else {
		roc := report.ROC
		fmt.Printf("Overall false positive rate: %.4f\n", roc.FPRate)
		fmt.Printf("\n%-14s %8s %8s\n", "gap", "TPR", "FPR")
		for _, p := range thin(roc.Curve, flags.Top) {
			fmt.Printf("%-14s %8.4f %8.4f\n", p.Gap, p.TPR, p.FPR)
		}

		subjects := make([]string, 0, len(roc.BySubject))
		for s, c := range roc.BySubject {
			if c.FalsePositives > 0 {
				subjects = append(subjects, s)
			}
		}
		sort.Slice(subjects, func(i, j int) bool {
			a, b := roc.BySubject[subjects[i]], roc.BySubject[subjects[j]]
			if a.FalsePositives != b.FalsePositives {
				return a.FalsePositives > b.FalsePositives
			}
			return subjects[i] < subjects[j]
		})
		if len(subjects) > flags.Top {
			subjects = subjects[:flags.Top]
		}
		fmt.Printf("\nSubjects joining unrelated threads:\n")
		for _, s := range subjects {
			c := roc.BySubject[s]
			fmt.Printf("  %4d/%-4d %q\n", c.FalsePositives, c.Pairs, s)
		}
	}

	printTable("Correspondents", report.Request, flags.Top)
	printTable("Bulk senders", report.Junk, flags.Top)
	printTable("Verdicts", report.Verdict, flags.Top)
	return nil
}

func printTable(title string, rows []core.AddressScore, top int) {
	fmt.Printf("\n=== %s (%d) ===\n", title, len(rows))
	if len(rows) > top {
		rows = rows[:top]
	}
	for _, r := range rows {
		fmt.Printf("%12.4g %4d/%-4d %s\n", r.Score, r.Relevant, r.Total, r.Address)
	}
}

// thin keeps at most n evenly spaced points of the curve, always including
// the last
func thin[T any](points []T, n int) []T {
	if n <= 0 || len(points) <= n {
		return points
	}
	out := make([]T, 0, n)
	step := float64(len(points)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, points[int(float64(i)*step+0.5)])
	}
	return out
}
