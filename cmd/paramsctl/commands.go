// FILE: lixenwraith/params/cmd/paramsctl/commands.go
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/params"
)

// rootOptions holds global flags for all commands
type rootOptions struct {
	Verbose bool
	Format  string // "yaml" | "json"
}

var validFormats = []string{"yaml", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "paramsctl",
		Short:         "Inspect and produce binary parameter files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			valid := false
			for _, f := range validFormats {
				valid = valid || f == opts.Format
			}
			if !valid {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")

	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newEncodeCommand())
	cmd.AddCommand(newTagsCommand())

	return cmd
}

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a binary parameter file and print it as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			slog.Debug("decoding parameter file", "path", args[0], "bytes", len(data))

			value, err := params.Decode(data, nil)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			return writeText(cmd.OutOrStdout(), opts.Format, plain(value))
		},
	}
}

func newEncodeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Encode a YAML, JSON or TOML document into the binary format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			format := params.DetectFormat(args[0], data)
			if format == "" || format == "binary" {
				return fmt.Errorf("cannot encode %s: not a text document", args[0])
			}
			slog.Debug("parsing document", "path", args[0], "format", format)

			doc, err := params.ParseDocument(data, format)
			if err != nil {
				return err
			}
			encoded, err := params.Encode(normalize(doc))
			if err != nil {
				return fmt.Errorf("encode %s: %w", args[0], err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(encoded)
				return err
			}
			slog.Debug("writing binary file", "path", output, "bytes", len(encoded))
			return os.WriteFile(output, encoded, 0644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newTagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the wire tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for tag := params.TagNone; tag <= params.TagSet; tag++ {
				if _, err := fmt.Fprintf(w, "0x%02X  %s\n", tag, params.TagName(tag)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writeText(w io.Writer, format string, v any) error {
	if format == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// plain turns decoded wire values into a tree text encoders can print
func plain(v any) any {
	switch x := v.(type) {
	case params.EnumRef:
		return x.Class + "." + x.Variant
	case params.ObjectRef:
		out := map[string]any{"__class__": x.Class}
		for k, f := range x.Fields {
			out[k] = plain(f)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case []any:
		return plainSeq(x)
	case params.Tuple:
		return plainSeq(x)
	case params.Set:
		return plainSeq(x)
	case params.Path:
		return string(x)
	case params.Bytes:
		return string(x)
	case params.Array:
		return x.Nested()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func plainSeq(items []any) []any {
	out := make([]any, len(items))
	for i, e := range items {
		out[i] = plain(e)
	}
	return out
}

// normalize converts parsed document numbers into values the encoder accepts
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	default:
		return v
	}
}
