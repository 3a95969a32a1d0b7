// Package cli implements the overlay command line tool: it layers JSONC
// documents weakest first and reports the merged explicit document, the
// provenance of a path or JSONPath matches.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	overlay "github.com/goliatone/go-overlay"
)

type rootFlags struct {
	verbose bool
	compact bool
}

// NewRootCommand builds the overlay command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "overlay",
		Short:         "Layer JSON documents and inspect which values were set explicitly",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log decode events to stderr")
	root.PersistentFlags().BoolVar(&flags.compact, "compact", false, "print JSON without indentation")

	root.AddCommand(
		newMergeCommand(flags),
		newTraceCommand(flags),
		newQueryCommand(flags),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

// loadStack decodes every file into a layer. Later files are stronger.
func loadStack(cmd *cobra.Command, flags *rootFlags, files []string) (*overlay.Overlay[map[string]any], error) {
	opts := flags.overlayOptions(cmd.ErrOrStderr())
	layers := make([]overlay.Layer[map[string]any], 0, len(files))
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := overlay.DecodeJSONC[map[string]any](data, opts...)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		scope := overlay.NewScope(path, i+1,
			overlay.WithScopeLabel(filepath.Base(path)),
			overlay.WithScopeMetadata(map[string]any{"path": path}),
		)
		layers = append(layers, overlay.NewLayer(scope, doc))
	}
	stack, err := overlay.NewStack(layers...)
	if err != nil {
		return nil, err
	}
	return stack.Merge(opts...)
}

func (f *rootFlags) overlayOptions(stderr io.Writer) []overlay.Option {
	opts := []overlay.Option{overlay.WithUseNumber()}
	if f.verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, overlay.WithDecodeLogger(overlay.NewSlogLogger(logger)))
	}
	return opts
}

func (f *rootFlags) print(w io.Writer, value any) error {
	var (
		data []byte
		err  error
	)
	if f.compact {
		data, err = json.Marshal(value)
	} else {
		data, err = json.MarshalIndent(value, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
