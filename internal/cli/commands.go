package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	storage "github.com/kbcstorage/storage-go"
	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/fs"
	"github.com/kbcstorage/storage-go/storagetypes"
)

func parseFileID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errors.NewError("cli", errors.ErrInvalidInput).WithMessage("invalid file id " + strconv.Quote(arg))
	}
	return id, nil
}

func (a *app) uploadCommand() *cobra.Command {
	var (
		tags      []string
		name      string
		public    bool
		permanent bool
		encrypted bool
		compress  bool
		notify    bool
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file and print its file id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			opts := []storagetypes.UploadOption{storage.WithTags(tags...)}
			if name != "" {
				opts = append(opts, storage.WithFileName(name))
			}
			if public {
				opts = append(opts, storage.WithPublic())
			}
			if permanent {
				opts = append(opts, storage.WithPermanent())
			}
			if encrypted {
				opts = append(opts, storage.WithEncrypted())
			}
			if compress {
				opts = append(opts, storage.WithCompress())
			}
			if notify {
				opts = append(opts, storage.WithNotify())
			}

			id, err := client.Files().Upload(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the local base name")
	cmd.Flags().BoolVar(&public, "public", false, "make the file publicly readable")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "never expire the file")
	cmd.Flags().BoolVar(&encrypted, "encrypted", false, "store with server-side encryption")
	cmd.Flags().BoolVar(&compress, "compress", false, "gzip the file before uploading")
	cmd.Flags().BoolVar(&notify, "notify", false, "notify project members")

	return cmd
}

func (a *app) downloadCommand() *cobra.Command {
	var (
		dir          string
		name         string
		noFederation bool
	)

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a file and print the local path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			target, err := fs.GetAbs(dir)
			if err != nil {
				return err
			}
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			opts := []storagetypes.DownloadOption{storage.WithFederation(!noFederation)}
			if name != "" {
				opts = append(opts, storage.WithFileNameOverride(name))
			}

			path, err := client.Files().Download(cmd.Context(), id, target, opts...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "target directory")
	cmd.Flags().StringVar(&name, "name", "", "local file name instead of the stored name")
	cmd.Flags().BoolVar(&noFederation, "no-federation", false, "download through the signed URL without delegated credentials")

	return cmd
}

func (a *app) detailCommand() *cobra.Command {
	var federationToken bool

	cmd := &cobra.Command{
		Use:   "detail <file-id>",
		Short: "Print file metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			var opts []storagetypes.DetailOption
			if federationToken {
				opts = append(opts, storage.WithFederationToken())
			}

			file, err := client.Files().Detail(cmd.Context(), id, opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), file)
		},
	}

	cmd.Flags().BoolVar(&federationToken, "federation-token", false, "include delegated object-store credentials")

	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	var ignoreMissing bool

	cmd := &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			err = client.Files().Delete(cmd.Context(), id)
			if ignoreMissing && errors.IsNotFound(err) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "succeed when the file does not exist")

	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var (
		tags   []string
		limit  int
		offset int
		query  string
		runID  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files as JSON, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			files, err := client.Files().List(cmd.Context(),
				storage.WithListTags(tags...),
				storage.WithLimit(limit),
				storage.WithOffset(offset),
				storage.WithQuery(query),
				storage.WithRunID(runID),
			)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), files)
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "only files with this tag (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of files")
	cmd.Flags().IntVar(&offset, "offset", 0, "files to skip")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query")
	cmd.Flags().StringVar(&runID, "run-id", "", "only files created within this run")

	return cmd
}

func (a *app) exportCommand() *cobra.Command {
	var (
		columns     []string
		limit       int
		format      string
		gzip        bool
		whereColumn string
		whereOp     string
		whereValues []string
		since       string
		until       string
		downloadDir string
	)

	cmd := &cobra.Command{
		Use:   "export <table-id>",
		Short: "Export a table; print the file id, or the local path with --download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			opts := []storagetypes.ExportOption{
				storage.WithColumns(columns...),
				storage.WithExportLimit(limit),
				storage.WithFormat(format),
				storage.WithChangedRange(since, until),
			}
			if gzip {
				opts = append(opts, storage.WithGzip())
			}
			if whereColumn != "" {
				opts = append(opts, storage.WithWhere(whereColumn, whereOp, whereValues...))
			}

			if downloadDir != "" {
				target, err := fs.GetAbs(downloadDir)
				if err != nil {
					return err
				}
				path, err := client.Tables().ExportToFile(cmd.Context(), args[0], target, opts)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}

			id, err := client.Tables().Export(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to export")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows")
	cmd.Flags().StringVar(&format, "format", "", "CSV dialect: rfc, raw or escaped")
	cmd.Flags().BoolVar(&gzip, "gzip", false, "compress the exported file")
	cmd.Flags().StringVar(&whereColumn, "where-column", "", "filter column")
	cmd.Flags().StringVar(&whereOp, "where-operator", "eq", "filter operator: eq or ne")
	cmd.Flags().StringSliceVar(&whereValues, "where-values", nil, "filter values")
	cmd.Flags().StringVar(&since, "changed-since", "", "only rows changed since")
	cmd.Flags().StringVar(&until, "changed-until", "", "only rows changed until")
	cmd.Flags().StringVar(&downloadDir, "download", "", "download the export into this directory")

	return cmd
}

func (a *app) loadCommand() *cobra.Command {
	var (
		incremental    bool
		delimiter      string
		enclosure      string
		withoutHeaders bool
		columns        []string
	)

	cmd := &cobra.Command{
		Use:   "load <table-id> <path>",
		Short: "Load a local CSV file into a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd)
			if err != nil {
				return err
			}

			opts := []storagetypes.LoadOption{
				storage.WithDelimiter(delimiter),
				storage.WithEnclosure(enclosure),
				storage.WithLoadColumns(columns...),
			}
			if incremental {
				opts = append(opts, storage.WithIncremental())
			}
			if withoutHeaders {
				opts = append(opts, storage.WithoutHeaders())
			}

			job, err := client.Tables().Load(cmd.Context(), args[0], args[1], opts...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), job.ID)
			return err
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "append rows instead of replacing the table")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "field delimiter")
	cmd.Flags().StringVar(&enclosure, "enclosure", `"`, "field enclosure")
	cmd.Flags().BoolVar(&withoutHeaders, "without-headers", false, "the file has no header line")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "column names for a headerless file")

	return cmd
}
