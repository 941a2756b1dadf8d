// Package deps reports the availability of the optional external binaries
// the render backends shell out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"spotd/internal/config"
)

// Requirement defines an external dependency spotd can take advantage of.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements derives the binary checks from configuration. Both render
// binaries are optional: the procedural backend needs neither.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "wkhtmltoimage",
			Command:     cfg.Render.WkhtmlBinary,
			Description: "native HTML card rendering (primary backend)",
			Optional:    true,
		},
		{
			Name:        "chromium",
			Command:     cfg.Render.ChromiumBinary,
			Description: "headless browser card rendering (secondary backend)",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
