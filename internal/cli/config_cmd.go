package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/errors"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, config file, .env and
environment have been applied. Passwords are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfig()
		},
	}
}

func (c *CLI) runConfig() error {
	cfg := redacted(c.cfg)

	if c.jsonOutput {
		return c.outputJSON(cfg)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	c.printf("%s", out)
	return nil
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	out.Database = cfg.Database.Redacted()
	if out.Session.Redis.Password != "" {
		out.Session.Redis.Password = "********"
	}
	return out
}

// userLine is the first line of an error, without reason and suggestion.
func userLine(err error) string {
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}

// reasonLine prefers the reason of a pace error over its message.
func reasonLine(err error) string {
	if pe, ok := errors.Details(err); ok && pe.Reason != "" {
		return pe.Reason
	}
	return userLine(err)
}
