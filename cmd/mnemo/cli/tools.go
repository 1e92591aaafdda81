package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/tools"
)

func newToolsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the archival memory tools",
	}
	cmd.AddCommand(newToolsListCmd(opts), newToolsCallCmd(opts))
	return cmd
}

func newToolsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools offered to chat models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Definitions do not need an open memory.
			r := tools.NewRegistry()
			if err := tools.RegisterArchival(r, nil); err != nil {
				return err
			}
			if opts.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r.GetToolsForProvider())
			}
			for _, t := range r.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

func newToolsCallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "call [name] [json-args]",
		Short: "Invoke a tool with JSON arguments",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			callArgs := map[string]interface{}{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
					return fmt.Errorf("invalid tool arguments: %w", err)
				}
			}

			m, err := a.openMemory()
			if err != nil {
				return err
			}
			r := tools.NewRegistry()
			if err := tools.RegisterArchival(r, m); err != nil {
				return err
			}

			call := tools.Call{ID: uuid.NewString(), Name: args[0], Args: callArgs}
			stop := a.spin("running " + call.Name)
			result, err := r.Execute(cmd.Context(), call)
			stop()
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]string{"id": call.ID, "name": call.Name, "result": result})
			}
			a.printf("%s\n", result)
			return nil
		}),
	}
}
