package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/validation"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Tables groups the table operations of a Client that produce or consume
// files.
type Tables struct {
	c *Client
}

// Export runs an asynchronous export of a table and returns the id of the
// resulting file. The file may be sliced; Files().Download handles both
// layouts.
//
// A job that does not finish within the client's MaxWait yields
// errors.ErrJobTimeout. The job keeps running on the platform.
func (t *Tables) Export(ctx context.Context, tableID string, opts ...storagetypes.ExportOption) (int64, error) {
	cfg := storagetypes.ExportOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.ValidateTableID(tableID); err != nil {
		return 0, err
	}
	if err := validation.Struct("export", &cfg); err != nil {
		return 0, err
	}

	job, err := t.c.poller.Start(ctx, fmt.Sprintf("tables/%s/export-async", tableID), exportForm(cfg))
	if err != nil {
		return 0, err
	}

	t.c.logger.InfoContext(ctx, "exporting table", "table_id", tableID, "job_id", job.ID)

	job, err = t.c.poller.RunToCompletion(ctx, job.ID, t.c.pollConfig())
	if err != nil {
		return 0, err
	}

	fileID, ok := job.ResultFileID()
	if !ok {
		return 0, errors.NewJobError("export", job.ID, errors.ErrInvalidResponse).
			WithMessage("job finished without a result file")
	}

	t.c.logger.InfoContext(ctx, "exported table",
		"table_id", tableID,
		"job_id", job.ID,
		"file_id", fileID)

	return fileID, nil
}

// ExportToFile exports a table and downloads the result into targetDir,
// returning the local path.
func (t *Tables) ExportToFile(
	ctx context.Context,
	tableID, targetDir string,
	exportOpts []storagetypes.ExportOption,
	downloadOpts ...storagetypes.DownloadOption,
) (string, error) {
	fileID, err := t.Export(ctx, tableID, exportOpts...)
	if err != nil {
		return "", err
	}
	return t.c.Files().Download(ctx, fileID, targetDir, downloadOpts...)
}

func exportForm(cfg storagetypes.ExportOptionConfig) url.Values {
	form := url.Values{}
	if cfg.Limit > 0 {
		form.Set("limit", strconv.Itoa(cfg.Limit))
	}
	if cfg.Format != "" {
		form.Set("format", cfg.Format)
	}
	if cfg.Gzip {
		form.Set("gzip", "1")
	}
	if cfg.ChangedSince != "" {
		form.Set("changedSince", cfg.ChangedSince)
	}
	if cfg.ChangedUntil != "" {
		form.Set("changedUntil", cfg.ChangedUntil)
	}
	if len(cfg.Columns) > 0 {
		form.Set("columns", strings.Join(cfg.Columns, ","))
	}
	if cfg.WhereColumn != "" {
		form.Set("whereColumn", cfg.WhereColumn)
		operator := cfg.WhereOperator
		if operator == "" {
			operator = "eq"
		}
		form.Set("whereOperator", operator)
		for _, v := range cfg.WhereValues {
			form.Add("whereValues[]", v)
		}
	}
	if cfg.IsIncremental {
		form.Set("isIncremental", "1")
	}
	return form
}

// Load uploads a local CSV file and imports it into a table, waiting for
// the import job to finish.
func (t *Tables) Load(
	ctx context.Context,
	tableID, path string,
	opts ...storagetypes.LoadOption,
) (*storagetypes.Job, error) {
	cfg := storagetypes.LoadOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.ValidateTableID(tableID); err != nil {
		return nil, err
	}
	if err := validation.Struct("load", &cfg); err != nil {
		return nil, err
	}

	var uploadOpts []storagetypes.UploadOption
	if cfg.ProgressTracker != nil {
		uploadOpts = append(uploadOpts, WithUploadProgress(cfg.ProgressTracker))
	}
	fileID, err := t.c.Files().Upload(ctx, path, uploadOpts...)
	if err != nil {
		return nil, err
	}

	job, err := t.c.poller.Start(ctx, fmt.Sprintf("tables/%s/import-async", tableID), loadForm(fileID, cfg))
	if err != nil {
		return nil, err
	}

	t.c.logger.InfoContext(ctx, "loading table",
		"table_id", tableID,
		"file_id", fileID,
		"job_id", job.ID)

	return t.c.poller.RunToCompletion(ctx, job.ID, t.c.pollConfig())
}

func loadForm(fileID int64, cfg storagetypes.LoadOptionConfig) url.Values {
	form := url.Values{}
	form.Set("dataFileId", strconv.FormatInt(fileID, 10))
	form.Set("incremental", boolFlag(cfg.Incremental))
	form.Set("withoutHeaders", boolFlag(cfg.WithoutHeaders))
	delimiter := cfg.Delimiter
	if delimiter == "" {
		delimiter = ","
	}
	form.Set("delimiter", delimiter)
	enclosure := cfg.Enclosure
	if enclosure == "" {
		enclosure = `"`
	}
	form.Set("enclosure", enclosure)
	if cfg.EscapedBy != "" {
		form.Set("escapedBy", cfg.EscapedBy)
	}
	for _, column := range cfg.Columns {
		form.Add("columns[]", column)
	}
	return form
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
