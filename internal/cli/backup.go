package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-forwarder/adapters/gocommand"
	forwardercommand "github.com/goliatone/go-forwarder/command"
	"github.com/goliatone/go-forwarder/core"
	forwarderquery "github.com/goliatone/go-forwarder/query"
	"github.com/spf13/cobra"
)

// BackupOptions holds flags shared by export and import.
type BackupOptions struct {
	*RootOptions
	File     string
	Strategy string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write rules and messages as a version 1 backup document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts.RootOptions, newLogger(cmd.ErrOrStderr(), opts.Verbose), true)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)
			bundle, err := registerCommands(rt.service)
			if err != nil {
				return err
			}
			defer bundle.Close()

			doc, err := gocommand.Query[forwarderquery.ExportBackupMessage, core.BackupDocument](ctx, forwarderquery.ExportBackupMessage{})
			if err != nil {
				return err
			}
			return writeBackup(cmd.OutOrStdout(), opts.File, doc)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "out", "o", "", "output file (defaults to stdout)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore rules and messages from a backup document",
		Long: `Restore a backup document. REPLACE clears existing rules and messages
first; MERGE appends. Imported records always receive new ids.

Example:
  forwarder import --strategy replace backup.json
  cat backup.json | forwarder import -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			strategy, err := core.ParseImportStrategy(opts.Strategy)
			if err != nil {
				return err
			}
			doc, err := readBackup(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			rt, err := openRuntime(ctx, opts.RootOptions, newLogger(cmd.ErrOrStderr(), opts.Verbose), true)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)
			bundle, err := registerCommands(rt.service)
			if err != nil {
				return err
			}
			defer bundle.Close()

			result, err := gocommand.DispatchWithResult[forwardercommand.ImportBackupMessage, core.ImportResult](ctx, forwardercommand.ImportBackupMessage{
				Document: doc,
				Strategy: strategy,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rule(s) and %d message(s) using %s\n",
				result.RulesImported, result.MessagesImported, result.Strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Strategy, "strategy", string(core.ImportStrategyMerge), "import strategy (replace|merge)")
	return cmd
}

func writeBackup(stdout io.Writer, path string, doc core.BackupDocument) error {
	out := stdout
	if path = strings.TrimSpace(path); path != "" && path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer file.Close()
		out = file
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

func readBackup(stdin io.Reader, path string) (core.BackupDocument, error) {
	var doc core.BackupDocument
	in := stdin
	if path = strings.TrimSpace(path); path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return doc, fmt.Errorf("open %s: %w", path, err)
		}
		defer file.Close()
		in = file
	}
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode backup: %w", err)
	}
	return doc, nil
}
