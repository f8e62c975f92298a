package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/core"
)

// statusGlyph maps the well-known run statuses to a marker. Unknown
// statuses fall through unmarked; the vocabulary belongs to the platform.
func statusGlyph(status string) string {
	switch strings.ToLower(status) {
	case "completed", "succeeded", "success", "healthy":
		return "[ok]"
	case "failed", "error", "cancelled":
		return "[failed]"
	case "running", "building", "deploying":
		return "[running]"
	case "pending", "queued":
		return "[pending]"
	default:
		return "[" + status + "]"
	}
}

func formatRun(run *core.Run) string {
	var out strings.Builder

	fmt.Fprintf(&out, "Deployment run %s", run.ID)
	if run.AppName != "" {
		fmt.Fprintf(&out, " (app: %s)", run.AppName)
	}
	fmt.Fprintf(&out, "\nStatus: %s\n", run.Status)
	if run.Source != "" {
		fmt.Fprintf(&out, "Source: %s\n", run.Source)
	}
	if !run.CreatedAt.IsZero() {
		fmt.Fprintf(&out, "Created: %s\n", run.CreatedAt.Format(time.RFC1123))
	}

	if len(run.Steps) > 0 {
		fmt.Fprintf(&out, "\nSteps:\n")
		for _, step := range run.Steps {
			fmt.Fprintf(&out, "  %s %s\n", statusGlyph(step.Status), step.Name)
			if step.Log != "" {
				for _, line := range strings.Split(strings.TrimRight(step.Log, "\n"), "\n") {
					fmt.Fprintf(&out, "      %s\n", line)
				}
			}
		}
	}

	return out.String()
}
