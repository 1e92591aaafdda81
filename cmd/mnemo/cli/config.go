package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/mnemo/internal/credential"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(
		newConfigSetCmd(opts),
		newConfigGetCmd(opts),
		newConfigListCmd(opts),
		newConfigDeleteCmd(opts),
		newConfigShowCmd(opts),
	)
	return cmd
}

func newConfigSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.store.SetConfig(args[0], args[1]); err != nil {
				return fmt.Errorf("failed to set config: %w", err)
			}
			a.printf("Configuration saved: %s\n", args[0])
			return nil
		}),
	}
}

func newConfigGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			val, err := a.store.GetConfig(args[0])
			if err != nil {
				return err
			}
			if val == "" {
				a.printf("(not set)\n")
			} else {
				a.printf("%s\n", val)
			}
			return nil
		}),
	}
}

func newConfigListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration values, secrets masked",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			settings, err := a.store.ListConfig()
			if err != nil {
				return err
			}
			type row struct {
				Key       string    `json:"key"`
				Value     string    `json:"value"`
				Secret    bool      `json:"secret"`
				UpdatedAt time.Time `json:"updatedAt"`
			}
			rows := make([]row, 0, len(settings))
			for _, s := range settings {
				v := s.Value
				if s.Secret {
					v = credential.Mask(v)
				}
				rows = append(rows, row{Key: s.Key, Value: v, Secret: s.Secret, UpdatedAt: s.UpdatedAt})
			}
			if a.jsonOut {
				return a.printJSON(rows)
			}
			for _, r := range rows {
				a.printf("%s = %s\n", r.Key, r.Value)
			}
			return nil
		}),
	}
}

func newConfigDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [key]",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			ok, err := a.store.DeleteConfig(args[0])
			if err != nil {
				return err
			}
			if !ok {
				a.printf("(not set)\n")
				return nil
			}
			a.printf("Configuration removed: %s\n", args[0])
			return nil
		}),
	}
}

func newConfigShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration file",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if a.jsonOut {
				return a.printJSON(a.cfg)
			}
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			a.printf("%s", out)
			return nil
		}),
	}
}
