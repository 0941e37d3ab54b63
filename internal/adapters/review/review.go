// Package review implements the pause between automated triage and purge
// where the owner inspects the review folders.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// Console prints the pass summary and waits for the owner to confirm
type Console struct {
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewConsole creates a console reviewer reading answers from in
func NewConsole(in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{in: in, out: out, logger: logger}
}

// AwaitReview blocks until the owner answers. An empty answer or "y"
// continues; "n" or "q" stops. A closed input stops.
func (c *Console) AwaitReview(ctx context.Context, report *core.PassReport) (bool, error) {
	fmt.Fprintf(c.out, "\nTriage pass %s: %d new messages, %d threads (%d with you), %d subject links\n",
		report.RunID, report.Ingested, report.Threads, report.OwnerThreads, report.SubjectLinks)
	dests := make([]string, 0, len(report.Routed))
	for d := range report.Routed {
		dests = append(dests, d)
	}
	sort.Strings(dests)
	for _, d := range dests {
		fmt.Fprintf(c.out, "  %-18s %d\n", d, report.Routed[d])
	}
	if report.Closed > 0 {
		fmt.Fprintf(c.out, "  %-18s %d\n", "closed", report.Closed)
	}
	fmt.Fprint(c.out, "Review the triage folders, then press enter to continue (n to stop): ")

	answer := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			errc <- err
			return
		}
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errc:
		if err == io.EOF {
			c.logger.Info("Review input closed, stopping")
			return false, nil
		}
		return false, fmt.Errorf("failed to read review answer: %w", err)
	case a := <-answer:
		switch a {
		case "", "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// Auto continues without waiting, for unattended runs
type Auto struct {
	logger *zap.Logger
}

// NewAuto creates a reviewer that always continues
func NewAuto(logger *zap.Logger) *Auto {
	return &Auto{logger: logger}
}

// AwaitReview logs the report and continues
func (a *Auto) AwaitReview(_ context.Context, report *core.PassReport) (bool, error) {
	a.logger.Info("Skipping interactive review",
		zap.String("run_id", report.RunID),
		zap.Any("routed", report.Routed))
	return true, nil
}
