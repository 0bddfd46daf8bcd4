package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillsenselab/streamkit/bytestream"
	"github.com/skillsenselab/streamkit/transform"
)

// fileOptions holds the flags shared by the file commands. Each command
// registers only the ones it uses.
type fileOptions struct {
	chunkSize int
	transform string
	filter    string
	key       string
	output    string
}

func newAnalyzeCmd() *cobra.Command {
	opts := &fileOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Read a file chunk by chunk and print its stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := bytestream.Analyze(cmd.Context(), args[0], bytestream.Options{
				ChunkSize: opts.chunkSize,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Read size in bytes (0 uses the default)")

	return cmd
}

func newProcessCmd() *cobra.Command {
	opts := &fileOptions{}

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Transform a file chunk by chunk into an output file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			streamOpts := bytestream.Options{ChunkSize: opts.chunkSize}

			if opts.transform != "" {
				fn, err := transform.Byte(opts.transform, opts.key)
				if err != nil {
					return err
				}
				streamOpts.Transform = fn
			}
			if opts.filter != "" {
				fn, err := transform.ByteFilter(opts.filter)
				if err != nil {
					return err
				}
				streamOpts.Filter = fn
			}

			stats, err := bytestream.ProcessToFile(cmd.Context(), args[0], opts.output, streamOpts)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Read size in bytes (0 uses the default)")
	cmd.Flags().StringVarP(&opts.transform, "transform", "t", "", "Byte transform to apply ("+strings.Join(transform.ByteNames, ", ")+")")
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "Chunk filter to apply ("+strings.Join(transform.FilterNames, ", ")+")")
	cmd.Flags().StringVarP(&opts.key, "key", "k", "", "Key for keyed transforms such as chacha20")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newCopyCmd() *cobra.Command {
	opts := &fileOptions{}

	cmd := &cobra.Command{
		Use:   "copy <file>",
		Short: "Copy a file chunk by chunk and print its stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := bytestream.CopyToFile(cmd.Context(), args[0], opts.output, bytestream.Options{
				ChunkSize: opts.chunkSize,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Read size in bytes (0 uses the default)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
