// Package cli implements the kbcfiles command line: file upload, download,
// inspection and table export/load against the Storage API.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	storage "github.com/kbcstorage/storage-go"
	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Exit codes returned by Execute.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitNotFound = 3
	ExitJob      = 4
)

type app struct {
	stderr     io.Writer
	clientOpts []storagetypes.Option
}

// NewRootCommand creates the kbcfiles command tree. clientOpts are applied
// after the options derived from configuration.
func NewRootCommand(stdout, stderr io.Writer, clientOpts ...storagetypes.Option) *cobra.Command {
	a := &app{stderr: stderr, clientOpts: clientOpts}

	root := &cobra.Command{
		Use:           "kbcfiles",
		Short:         "Move files in and out of Storage API projects",
		Long:          `Upload and download Storage API files, including sliced table exports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	registerGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		a.uploadCommand(),
		a.downloadCommand(),
		a.detailCommand(),
		a.deleteCommand(),
		a.listCommand(),
		a.exportCommand(),
		a.loadCommand(),
	)

	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	return exitCode(stderr, root.ExecuteContext(ctx))
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	code := errors.Code(err)
	if code == errors.CodeUnknown || code == "" {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	} else {
		fmt.Fprintf(stderr, "Error: %v [%s]\n", err, code)
	}

	switch {
	case errors.IsNotFound(err):
		return ExitNotFound
	case errors.IsJobFailed(err), errors.IsJobTimeout(err):
		return ExitJob
	default:
		return ExitError
	}
}

// client builds a storage client from the command's configuration.
func (a *app) client(cmd *cobra.Command) (*storage.Client, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := newLogger(a.stderr, cfg.LogLevel, cfg.LogFormat)

	opts := []storagetypes.Option{
		storage.WithToken(cfg.Token),
		storage.WithTimeout(cfg.Timeout),
		storage.WithLogger(logger),
		storage.WithMaxWait(cfg.MaxWait),
		storage.WithTransferRetries(cfg.TransferRetries),
		storage.WithPartConcurrency(cfg.PartConcurrency),
		storage.WithUserAgent("kbcfiles"),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, storage.WithEndpoint(cfg.Endpoint, cfg.PathStyle))
	}
	opts = append(opts, a.clientOpts...)

	return storage.New(cfg.URL, opts...)
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
