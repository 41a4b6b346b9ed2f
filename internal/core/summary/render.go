package summary

import (
	"fmt"
	"io"
	"strings"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/fatih/color"
)

// RenderOptions controls console rendering.
type RenderOptions struct {
	NoColor bool
	Source  string
	Target  string
}

const ruleWidth = 70

// Render writes the human readable summary of r to w.
func Render(w io.Writer, r Report, opts RenderOptions) error {
	var (
		header  = color.New(color.FgMagenta, color.Bold)
		success = color.New(color.FgGreen)
		failure = color.New(color.FgRed)
		warning = color.New(color.FgYellow)
	)
	// Without NoColor, fatih/color decides from the terminal and NO_COLOR.
	if opts.NoColor {
		for _, c := range []*color.Color{header, success, failure, warning} {
			c.DisableColor()
		}
	}

	rule := strings.Repeat("=", ruleWidth)
	var b strings.Builder

	header.Fprintf(&b, "%s\n  DEPLOYMENT SUMMARY\n%s\n", rule, rule)
	if opts.Source != "" {
		fmt.Fprintf(&b, "Source:     %s\n", opts.Source)
	}
	if opts.Target != "" {
		fmt.Fprintf(&b, "Target:     %s\n", opts.Target)
	}
	fmt.Fprintf(&b, "Total:      %d\n", r.Total)
	fmt.Fprintf(&b, "Succeeded:  %d\n", r.SuccessCount)
	fmt.Fprintf(&b, "Failed:     %d\n", r.FailedCount)
	fmt.Fprintf(&b, "Skipped:    %d\n", r.SkippedCount)

	switch {
	case r.Total == 0:
		warning.Fprintln(&b, "No items to deploy")
	case r.FailedCount == 0 && r.SuccessCount == r.Total:
		success.Fprintf(&b, "All %d items deployed successfully\n", r.Total)
	case r.FailedCount == 0:
		success.Fprintf(&b, "%d/%d items deployed, %d skipped\n", r.SuccessCount, r.Total, r.SkippedCount)
	case r.SuccessCount > 0:
		warning.Fprintf(&b, "%d/%d items deployed successfully\n", r.SuccessCount, r.Attempted())
	default:
		failure.Fprintln(&b, "No items deployed successfully")
	}

	if failed := r.ByStatus(domain.OutcomeFailed); len(failed) > 0 {
		header.Fprintf(&b, "%s\n  FAILED ITEMS\n%s\n", rule, rule)
		for _, d := range failed {
			failure.Fprintf(&b, "  - %s (%s): %s\n", d.Name, d.Type, d.Detail)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
