package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"github.com/torosent/fanload/internal/config"
	"github.com/torosent/fanload/internal/feeder"
	"github.com/torosent/fanload/internal/hooks"
	"github.com/torosent/fanload/internal/scenario"
)

var defaultVideoFields = []string{"token", "serial", "data", "videos"}

func newSampleCommand() *cobra.Command {
	var row int

	cmd := &cobra.Command{
		Use:   "sample <hook>",
		Short: "Run one scenario hook once and print the iteration variables",
		Long: `sample runs a scenario hook outside the load tool. decodeBase64ToJSON
reads its loop element from row --row of the video data file.

Hooks: ` + strings.Join(hooks.NewRegistry(nil).Names(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigForSample(cmd)
			if err != nil {
				return err
			}
			registry := hooks.NewRegistry(nil)
			name := args[0]
			if _, ok := registry.Lookup(name); !ok {
				return fmt.Errorf("unknown hook %q (available: %s)", name, strings.Join(registry.Names(), ", "))
			}

			it := hooks.NewIteration()
			if name == hooks.NameDecodeMedia {
				// The scenario only supplies field names; a missing file falls back to the defaults.
				sc, _ := scenario.Load(cfg.LoadTool.Scenario)
				fields := sc.FieldsFor(cfg.Files.Videos, defaultVideoFields...)
				f, err := feeder.NewCSVFeeder(cfg.Path(cfg.Files.Videos), fields...)
				if err != nil {
					return err
				}
				defer f.Close()
				rec, err := f.At(row)
				if err != nil {
					return err
				}
				it = hooks.NewIterationFrom(map[string]any{hooks.VarLoopElement: map[string]string(rec)})
			}

			if err := registry.Run(name, it); err != nil {
				return err
			}

			vars := it.Vars.GetAll()
			maps.DeleteFunc(vars, func(k string, _ any) bool { return k == hooks.VarLoopElement })
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(vars)
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "Zero-based row of the video data file fed to decodeBase64ToJSON")
	return cmd
}

// loadConfigForSample skips validation; sampling needs no API address.
func loadConfigForSample(cmd *cobra.Command) (*config.Config, error) {
	return config.NewLoader().LoadFlags(cmd.Flags())
}
