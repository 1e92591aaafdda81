package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/plugin"
	"github.com/felixgeelhaar/mnemo/internal/provider"
)

func newPluginCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Embedder plugin support",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the configured embedder to a host over the plugin protocol",
		Long: `Serve runs as a child process of a mnemo host whose embedding.provider is
"plugin". It is not meant to be started by hand.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if a.cfg.Embedding.Provider == "plugin" {
				return fmt.Errorf("a plugin cannot serve the plugin provider")
			}
			emb, err := a.newEmbedder()
			if err != nil {
				return err
			}
			defer provider.Close(emb)

			a.obs.Log().Info().Str("provider", emb.Name()).Msg("serving embedder plugin")
			plugin.Serve(emb)
			return nil
		}),
	})
	return cmd
}
