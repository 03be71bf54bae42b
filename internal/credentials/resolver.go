// Package credentials resolves file metadata and delegated object-store
// credentials from the Storage API, and prepares new upload entries.
//
// Nothing here is cached: every call asks the platform again, so callers
// always hold credentials minted for the transfer at hand.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/api"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Requester is the subset of the Storage API transport used by the resolver.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	PostForm(ctx context.Context, path string, form url.Values, out any) error
	Delete(ctx context.Context, path string) error
}

// Resolver talks to the files endpoints of the Storage API.
type Resolver struct {
	api    Requester
	logger *slog.Logger
}

// New creates a Resolver.
func New(api Requester, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve fetches the metadata of a file. With federated set the platform
// is asked for a delegated credential triple scoped to the file's location;
// an answer without a complete triple means the token cannot federate.
func (r *Resolver) Resolve(ctx context.Context, fileID int64, federated bool) (*storagetypes.FileResource, error) {
	query := url.Values{}
	if federated {
		query.Set("federationToken", "1")
	}

	var file storagetypes.FileResource
	if err := r.api.Get(ctx, filePath(fileID), query, &file); err != nil {
		return nil, errors.NewFileError("resolve", fileID, err).WithStatus(api.StatusCode(err))
	}

	if file.ID == 0 {
		return nil, errors.NewFileError("resolve", fileID, errors.ErrInvalidResponse).
			WithMessage("response carries no file id")
	}

	if federated {
		if !file.Credentials.Complete() {
			return nil, errors.NewFileError("resolve", fileID, errors.ErrUnauthorized).
				WithMessage("token is not allowed to federate")
		}
		r.logger.DebugContext(ctx, "resolved federated credentials",
			"file_id", fileID,
			"credentials", *file.Credentials)
	} else {
		file.Credentials = nil
	}

	return &file, nil
}

// PrepareRequest describes a file entry to create before uploading bytes.
type PrepareRequest struct {
	Name        string
	SizeBytes   int64
	Tags        []string
	IsPublic    bool
	IsPermanent bool
	IsEncrypted bool
	IsSliced    bool
	Notify      bool
}

func (p PrepareRequest) form() url.Values {
	form := url.Values{}
	form.Set("name", p.Name)
	form.Set("sizeBytes", strconv.FormatInt(p.SizeBytes, 10))
	form.Set("isPublic", boolString(p.IsPublic))
	form.Set("isPermanent", boolString(p.IsPermanent))
	form.Set("isEncrypted", boolString(p.IsEncrypted))
	form.Set("isSliced", boolString(p.IsSliced))
	form.Set("notify", boolString(p.Notify))
	form.Set("federationToken", "1")
	for _, tag := range p.Tags {
		form.Add("tags[]", tag)
	}
	return form
}

// Prepare creates a file entry and returns it with upload parameters.
func (r *Resolver) Prepare(ctx context.Context, req PrepareRequest) (*storagetypes.FileResource, error) {
	var file storagetypes.FileResource
	if err := r.api.PostForm(ctx, "files/prepare", req.form(), &file); err != nil {
		return nil, errors.NewError("prepare", err).WithStatus(api.StatusCode(err))
	}

	if file.ID == 0 || file.UploadParams == nil {
		return nil, errors.NewError("prepare", errors.ErrInvalidResponse).
			WithMessage("response carries no upload parameters")
	}
	params := file.UploadParams
	if params.Bucket == "" || params.Key == "" {
		return nil, errors.NewFileError("prepare", file.ID, errors.ErrInvalidResponse).
			WithMessage("upload parameters carry no bucket or key")
	}
	if !params.Credentials.Complete() {
		return nil, errors.NewFileError("prepare", file.ID, errors.ErrUnauthorized).
			WithMessage("upload parameters carry no credentials")
	}

	r.logger.DebugContext(ctx, "prepared file upload",
		"file_id", file.ID,
		"bucket", params.Bucket,
		"key", params.Key)

	return &file, nil
}

// Delete removes a file entry. A missing file yields errors.ErrNotFound.
func (r *Resolver) Delete(ctx context.Context, fileID int64) error {
	if err := r.api.Delete(ctx, filePath(fileID)); err != nil {
		return errors.NewFileError("delete", fileID, err).WithStatus(api.StatusCode(err))
	}
	return nil
}

// ListFilter narrows a file listing.
type ListFilter struct {
	Tags    []string
	Limit   int
	Offset  int
	Query   string
	SinceID int64
	MaxID   int64
	RunID   string
}

func (f ListFilter) query() url.Values {
	q := url.Values{}
	for _, tag := range f.Tags {
		q.Add("tags[]", tag)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.SinceID > 0 {
		q.Set("sinceId", strconv.FormatInt(f.SinceID, 10))
	}
	if f.MaxID > 0 {
		q.Set("maxId", strconv.FormatInt(f.MaxID, 10))
	}
	if f.RunID != "" {
		q.Set("runId", f.RunID)
	}
	return q
}

// List returns the files matching the filter, newest first as ordered by
// the platform.
func (r *Resolver) List(ctx context.Context, filter ListFilter) ([]storagetypes.FileResource, error) {
	var files []storagetypes.FileResource
	if err := r.api.Get(ctx, "files", filter.query(), &files); err != nil {
		return nil, errors.NewError("list", err).WithStatus(api.StatusCode(err))
	}
	for i := range files {
		files[i].Credentials = nil
	}
	return files, nil
}

func filePath(id int64) string {
	return fmt.Sprintf("files/%d", id)
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
