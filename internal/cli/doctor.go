package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/adapters/builtin"
	"github.com/canonica-labs/pace/internal/session"
	"github.com/canonica-labs/pace/internal/status"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Long: `Run system diagnostics.

Checks:
  - database credentials and driver selection
  - database connectivity
  - base table listing
  - session store`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

// DiagnosticCheck represents a single diagnostic check result.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (c *CLI) runDoctor(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	checks := []DiagnosticCheck{c.checkConfig()}
	if checks[0].Passed {
		checks = append(checks, c.checkRuntime(ctx)...)
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
	}

	if c.jsonOutput {
		if err := c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		}); err != nil {
			return err
		}
	} else {
		c.println("PACE System Diagnostics")
		c.println("=======================")
		c.println("")
		for _, check := range checks {
			c.printCheck(check)
		}
		c.println("")
		if allPassed {
			c.println("✓ All checks passed")
		} else {
			c.println("✗ Some checks failed - see above for details")
		}
	}

	if !allPassed {
		return fmt.Errorf("diagnostics failed")
	}
	return nil
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	mark := "✗"
	if check.Passed {
		mark = "✓"
	}
	c.printf("%s %s: %s\n", mark, check.Name, check.Message)
	if check.Details != "" && !check.Passed {
		c.printf("  → %s\n", check.Details)
	}
}

func (c *CLI) checkConfig() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Configuration"}

	driver := c.cfg.Database.DriverOrDefault()
	adapter, err := builtin.NewRegistry().Resolve(driver)
	if err != nil {
		check.Message = fmt.Sprintf("Unsupported DB_DRIVER %q", driver)
		check.Details = reasonLine(err)
		return check
	}
	if err := adapters.CheckRequired(adapter, c.cfg.Database); err != nil {
		check.Message = "Missing database credentials"
		check.Details = reasonLine(err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%s via %s", adapter.Name(), driver)
	return check
}

// checkRuntime runs the readiness checks serve uses, then lists tables.
func (c *CLI) checkRuntime(ctx context.Context) []DiagnosticCheck {
	log, err := c.logger(false)
	if err != nil {
		return []DiagnosticCheck{{Name: "Logging", Message: err.Error()}}
	}

	svc, err := c.newViewer(log, nil, nil)
	if err != nil {
		return []DiagnosticCheck{{Name: "Viewer", Message: err.Error()}}
	}
	defer svc.Close()

	store, err := session.NewStore(ctx, c.cfg.Session, log)
	if err != nil {
		return []DiagnosticCheck{{Name: "Session Store", Message: "Unavailable", Details: err.Error()}}
	}
	defer store.Close()

	result := c.newChecker(svc, store).Check(ctx)
	checks := readinessChecks(result)

	listing, err := svc.ListTables(ctx)
	listCheck := DiagnosticCheck{Name: "Table Listing"}
	switch {
	case err != nil:
		listCheck.Message = "Skipped"
		listCheck.Details = userLine(err)
	case listing.Failed():
		listCheck.Message = "Unable to list tables."
		listCheck.Details = userLine(listing.Err)
	case listing.Empty():
		listCheck.Passed = true
		listCheck.Message = "No tables found in the database."
	default:
		listCheck.Passed = true
		listCheck.Message = fmt.Sprintf("%d base tables", len(listing.Names))
	}
	return append(checks, listCheck)
}

func readinessChecks(result *status.Result) []DiagnosticCheck {
	names := []struct{ key, label string }{
		{"database", "Database Connectivity"},
		{"sessions", "Session Store"},
	}
	checks := make([]DiagnosticCheck, 0, len(names))
	for _, n := range names {
		comp, ok := result.Components[n.key]
		if !ok {
			continue
		}
		check := DiagnosticCheck{Name: n.label, Passed: comp.Ready, Message: comp.Message}
		if !comp.Ready {
			check.Message = "Not ready"
			check.Details = comp.Message
		}
		checks = append(checks, check)
	}
	return checks
}
