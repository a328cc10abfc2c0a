package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"mediaflow/internal/config"
)

// Requirement defines an external binary mediaflow relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// DependencyStatus reports the availability of a binary.
type DependencyStatus struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement on PATH. Available entries carry
// the resolved path as Command.
func CheckBinaries(requirements []Requirement) []DependencyStatus {
	results := make([]DependencyStatus, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := DependencyStatus{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Command = resolved
		}
		results = append(results, status)
	}
	return results
}

// CheckSystemDeps evaluates the binaries the configured pipeline calls.
// Both the daemon status endpoint and the CLI use this list.
func CheckSystemDeps(cfg *config.Config) []DependencyStatus {
	if cfg == nil {
		return nil
	}
	return CheckBinaries([]Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Extracts duration and technical metadata; jobs complete without metadata when missing",
			Optional:    true,
		},
	})
}
