// Package storagetypes provides shared type definitions for the Storage API client.
package storagetypes

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Credentials are short-lived object-store credentials minted by the platform
// for one file's storage location. Treat them as an opaque capability: use
// them for one transfer and drop them. Formatting and logging redact the
// secret parts.
type Credentials struct {
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	SessionToken    string    `json:"SessionToken"`
	Expiration      Timestamp `json:"Expiration,omitempty"`
}

// Complete reports whether all three parts of the credential triple are set.
func (c *Credentials) Complete() bool {
	return c != nil && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.SessionToken != ""
}

// String implements fmt.Stringer without exposing the secret or the token.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKeyID:%s SecretAccessKey:[REDACTED] SessionToken:[REDACTED]}",
		redactKeyID(c.AccessKeyID))
}

// GoString keeps %#v from printing the secret fields.
func (c Credentials) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_key_id", redactKeyID(c.AccessKeyID)),
		slog.Time("expiration", c.Expiration.Time),
	)
}

func redactKeyID(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return id[:4] + strings.Repeat("*", len(id)-4)
}

// S3Path is where the platform stored a file. For a sliced file the key
// points at the manifest object.
type S3Path struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// UploadParams is returned by the platform for a freshly prepared upload.
type UploadParams struct {
	Bucket      string       `json:"bucket"`
	Key         string       `json:"key"`
	ACL         string       `json:"acl"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// CreatorToken identifies the Storage API token that created a file.
type CreatorToken struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

// FileResource is the platform metadata of a stored file.
type FileResource struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	SizeBytes    int64         `json:"sizeBytes"`
	IsPublic     bool          `json:"isPublic"`
	IsSliced     bool          `json:"isSliced"`
	IsEncrypted  bool          `json:"isEncrypted"`
	Created      Timestamp     `json:"created"`
	URL          string        `json:"url"`
	Region       string        `json:"region"`
	Provider     string        `json:"provider,omitempty"`
	CreatorToken CreatorToken  `json:"creatorToken"`
	Tags         []string      `json:"tags"`
	S3Path       *S3Path       `json:"s3Path,omitempty"`
	Credentials  *Credentials  `json:"credentials,omitempty"`
	UploadParams *UploadParams `json:"uploadParams,omitempty"`
}

// HasTags reports whether every given tag is attached to the file.
// Tag order is irrelevant.
func (f *FileResource) HasTags(tags ...string) bool {
	for _, tag := range tags {
		if !slices.Contains(f.Tags, tag) {
			return false
		}
	}
	return true
}

// LocatorKind selects how a file's content is laid out in the object store.
type LocatorKind int

const (
	// LocatorDirect is a single object holding the whole file.
	LocatorDirect LocatorKind = iota
	// LocatorSliced is a set of part objects under a manifest prefix.
	LocatorSliced
)

func (k LocatorKind) String() string {
	switch k {
	case LocatorDirect:
		return "direct"
	case LocatorSliced:
		return "sliced"
	default:
		return fmt.Sprintf("LocatorKind(%d)", int(k))
	}
}

// Locator addresses a file's content in the object store. For LocatorDirect
// Key is the object key; for LocatorSliced it is the manifest object key.
type Locator struct {
	Kind   LocatorKind
	Bucket string
	Key    string
}

// Locator returns the object-store locator of the file. The variant is chosen
// solely from IsSliced.
func (f *FileResource) Locator() (Locator, error) {
	if f.S3Path == nil || f.S3Path.Bucket == "" || f.S3Path.Key == "" {
		return Locator{}, fmt.Errorf("file %d has no object-store path", f.ID)
	}
	kind := LocatorDirect
	if f.IsSliced {
		kind = LocatorSliced
	}
	return Locator{Kind: kind, Bucket: f.S3Path.Bucket, Key: f.S3Path.Key}, nil
}

// JobStatus is the server-driven state of an asynchronous job.
type JobStatus string

// Job states as reported by the platform.
const (
	JobWaiting    JobStatus = "waiting"
	JobProcessing JobStatus = "processing"
	JobSuccess    JobStatus = "success"
	JobErrored    JobStatus = "error"
)

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobErrored
}

// JobFileRef references the file produced by a job.
type JobFileRef struct {
	ID int64 `json:"id"`
}

// JobResults holds the outputs of a successful job.
type JobResults struct {
	File *JobFileRef `json:"file,omitempty"`
}

// JobError is the failure reported for a job in the error state.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Job is an asynchronous platform operation.
type Job struct {
	ID        int64       `json:"id"`
	Status    JobStatus   `json:"status"`
	URL       string      `json:"url"`
	Operation string      `json:"operationName"`
	TableID   string      `json:"tableId,omitempty"`
	Results   *JobResults `json:"results,omitempty"`
	Error     *JobError   `json:"error,omitempty"`
	Created   Timestamp   `json:"createdTime"`
}

// ResultFileID returns the id of the file produced by a successful job.
func (j *Job) ResultFileID() (int64, bool) {
	if j.Results == nil || j.Results.File == nil || j.Results.File.ID == 0 {
		return 0, false
	}
	return j.Results.File.ID, true
}

// Object represents an object-store object with its basic metadata.
type Object struct {
	// Key is the object key (path)
	Key string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the entity tag for the object
	ETag string
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads and downloads.
type ProgressTracker interface {
	// Update is called periodically with transfer progress
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}
