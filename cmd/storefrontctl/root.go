package main

import (
	"io"
	"strings"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// rootOptions хранит глобальные флаги.
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "storefrontctl – operator tool for the storefront personalization service",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (default: $STOREFRONT_CONFIG or ./config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose debug output to stderr")

	root.AddCommand(
		newViewCmd(opts),
		newSearchCmd(opts),
		newFingerprintCmd(),
		newSeedCmd(),
		newMigrateCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

// loadConfig читает конфигурацию сервиса: CLI использует те же источники.
func (o *rootOptions) loadConfig() (app.Config, error) {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return app.LoadFile(path)
	}
	return app.Load()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
