package main

import (
	"github.com/spf13/cobra"

	"github.com/skillsenselab/streamkit/config"
)

const rootLongDesc = `Streamkit processes data as a stream of chunks.

Run the HTTP server:
  streamkit serve            Serve the run endpoints

Work on files directly:
  streamkit analyze <file>   Report size, line, word, and character counts
  streamkit process <file>   Rewrite a file through a byte transform
  streamkit copy <file>      Stream-copy a file chunk by chunk`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "streamkit",
		Short:        "Streamkit - chunked stream processing",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config.yml (searched in standard locations when unset)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newCopyCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig resolves the application configuration, honoring the --config
// and --debug flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.LoaderOption
	if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
