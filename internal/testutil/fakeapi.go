package testutil

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kbcstorage/storage-go/storagetypes"
)

const (
	// FakeToken is the Storage API token accepted by FakeStorageAPI.
	FakeToken = "fake-storage-token"
	// FakeBucket receives every uploaded and exported object.
	FakeBucket = "kbc-sapi-files"
)

// RecordedRequest is one request seen by FakeStorageAPI.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

type fakeTable struct {
	columns []string
	rows    [][]string
}

type fakeJob struct {
	job    storagetypes.Job
	polls  int
	finish func() (int64, error)
}

// FakeStorageAPI is an echo-based stand-in for the Storage API files,
// tables and jobs endpoints. Objects live in the attached MemoryS3.
type FakeStorageAPI struct {
	mu sync.Mutex

	store  *MemoryS3
	server *httptest.Server

	files    map[int64]*storagetypes.FileResource
	tables   map[string]*fakeTable
	jobs     map[int64]*fakeJob
	requests []RecordedRequest
	nextID   int64

	bucket         string
	region         string
	denyFederation bool
	jobPolls       int
	stallJobs      bool
	rowsPerSlice   int
}

// NewFakeStorageAPI starts a fake Storage API backed by store. The server
// is closed when the test ends.
func NewFakeStorageAPI(t testing.TB, store *MemoryS3) *FakeStorageAPI {
	t.Helper()

	f := &FakeStorageAPI{
		store:        store,
		files:        make(map[int64]*storagetypes.FileResource),
		tables:       make(map[string]*fakeTable),
		jobs:         make(map[int64]*fakeJob),
		nextID:       100,
		bucket:       FakeBucket,
		region:       "us-east-1",
		jobPolls:     3,
		rowsPerSlice: 1,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	g := e.Group("/v2/storage", f.record, f.authenticate)
	g.POST("/files/prepare", f.prepareFile)
	g.GET("/files", f.listFiles)
	g.GET("/files/:id", f.fileDetail)
	g.DELETE("/files/:id", f.deleteFile)
	g.POST("/tables/:id/export-async", f.exportTable)
	g.POST("/tables/:id/import-async", f.importTable)
	g.GET("/jobs/:id", f.jobDetail)

	// Signed object URLs need no token.
	e.GET("/objects/:bucket/*", f.objectContent)

	f.server = httptest.NewServer(e)
	t.Cleanup(f.server.Close)

	return f
}

// URL returns the root URL of the fake, without the API prefix.
func (f *FakeStorageAPI) URL() string {
	return f.server.URL
}

// Store returns the object store behind the fake.
func (f *FakeStorageAPI) Store() *MemoryS3 {
	return f.store
}

// Requests returns the requests seen so far.
func (f *FakeStorageAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// SetDenyFederation makes federated file details omit credentials.
func (f *FakeStorageAPI) SetDenyFederation(deny bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyFederation = deny
}

// SetJobPolls sets the poll on which a job reaches its terminal state.
func (f *FakeStorageAPI) SetJobPolls(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobPolls = n
}

// SetStallJobs keeps jobs processing forever.
func (f *FakeStorageAPI) SetStallJobs(stall bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stallJobs = stall
}

// SetRowsPerSlice sets how many rows each exported part holds.
func (f *FakeStorageAPI) SetRowsPerSlice(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rowsPerSlice = n
}

// AddTable creates or replaces a table.
func (f *FakeStorageAPI) AddTable(id string, columns []string, rows ...[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[id] = &fakeTable{columns: columns, rows: rows}
}

// TableRows returns a copy of the rows of a table.
func (f *FakeStorageAPI) TableRows(id string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[id]
	if !ok {
		return nil
	}
	return slices.Clone(t.rows)
}

// HasFile reports whether a file entry exists.
func (f *FakeStorageAPI) HasFile(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[id]
	return ok
}

// AddSlicedFile registers a sliced file whose parts hold the given chunks.
// Parts are named so that listing order equals slice order.
func (f *FakeStorageAPI) AddSlicedFile(name string, parts ...[]byte) *storagetypes.FileResource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addSlicedLocked(name, parts)
}

func (f *FakeStorageAPI) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := RecordedRequest{
			Method: c.Request().Method,
			Path:   strings.TrimPrefix(c.Request().URL.Path, "/v2/storage/"),
			Query:  c.QueryParams(),
		}
		if c.Request().Method == http.MethodPost {
			if form, err := c.FormParams(); err == nil {
				req.Form = form
			}
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		return next(c)
	}
}

func (f *FakeStorageAPI) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("X-StorageApi-Token") != FakeToken {
			return apiError(c, http.StatusUnauthorized, "Invalid access token", "storage.tokenInvalid")
		}
		return next(c)
	}
}

func apiError(c echo.Context, status int, message, code string) error {
	return c.JSON(status, map[string]string{
		"error":       message,
		"code":        code,
		"status":      "error",
		"exceptionId": "exception-" + uuid.NewString(),
	})
}

func (f *FakeStorageAPI) newCredentialsLocked() *storagetypes.Credentials {
	f.nextID++
	return &storagetypes.Credentials{
		AccessKeyID:     fmt.Sprintf("ASIAFAKE%08d", f.nextID),
		SecretAccessKey: "secret-" + uuid.NewString(),
		SessionToken:    "session-" + uuid.NewString(),
		Expiration:      storagetypes.Timestamp{Time: time.Now().Add(time.Hour).Truncate(time.Second)},
	}
}

func (f *FakeStorageAPI) newFileLocked(name string) *storagetypes.FileResource {
	f.nextID++
	id := f.nextID
	return &storagetypes.FileResource{
		ID:       id,
		Name:     name,
		Created:  storagetypes.Timestamp{Time: time.Now().Truncate(time.Second)},
		Region:   f.region,
		Provider: "aws",
		URL:      fmt.Sprintf("%s/objects/%s/exp-15/files/%d.%s?X-Amz-Signature=fake", f.server.URL, f.bucket, id, name),
		S3Path: &storagetypes.S3Path{
			Bucket: f.bucket,
			Key:    fmt.Sprintf("exp-15/files/%d.%s", id, name),
		},
		CreatorToken: storagetypes.CreatorToken{ID: 1, Description: "fake token"},
	}
}

func formBool(c echo.Context, name string) bool {
	v := c.FormValue(name)
	return v == "1" || v == "true"
}

func (f *FakeStorageAPI) prepareFile(c echo.Context) error {
	name := c.FormValue("name")
	if name == "" {
		return apiError(c, http.StatusBadRequest, "Name is required", "storage.validation")
	}
	size, _ := strconv.ParseInt(c.FormValue("sizeBytes"), 10, 64)
	form, _ := c.FormParams()

	f.mu.Lock()
	defer f.mu.Unlock()

	file := f.newFileLocked(name)
	file.SizeBytes = size
	file.IsPublic = formBool(c, "isPublic")
	file.IsEncrypted = formBool(c, "isEncrypted")
	file.IsSliced = formBool(c, "isSliced")
	file.Tags = form["tags[]"]
	f.files[file.ID] = file

	resp := *file
	acl := "private"
	if file.IsPublic {
		acl = "public-read"
	}
	resp.UploadParams = &storagetypes.UploadParams{
		Bucket:      file.S3Path.Bucket,
		Key:         file.S3Path.Key,
		ACL:         acl,
		Credentials: f.newCredentialsLocked(),
	}

	return c.JSON(http.StatusOK, resp)
}

func (f *FakeStorageAPI) lookupFile(c echo.Context) (*storagetypes.FileResource, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, apiError(c, http.StatusBadRequest, "Invalid file id", "storage.validation")
	}
	file, ok := f.files[id]
	if !ok {
		return nil, apiError(c, http.StatusNotFound, fmt.Sprintf("File %d not found", id), "storage.files.notFound")
	}
	return file, nil
}

func (f *FakeStorageAPI) fileDetail(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.lookupFile(c)
	if file == nil {
		return err
	}

	resp := *file
	if c.QueryParam("federationToken") == "1" && !f.denyFederation {
		resp.Credentials = f.newCredentialsLocked()
	}
	return c.JSON(http.StatusOK, resp)
}

func (f *FakeStorageAPI) objectContent(c echo.Context) error {
	obj, ok := f.store.Object(c.Param("bucket"), c.Param("*"))
	if !ok {
		return c.String(http.StatusNotFound, "NoSuchKey")
	}
	return c.Blob(http.StatusOK, "application/octet-stream", obj.Data)
}

func (f *FakeStorageAPI) deleteFile(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.lookupFile(c)
	if file == nil {
		return err
	}
	delete(f.files, file.ID)
	return c.NoContent(http.StatusNoContent)
}

func (f *FakeStorageAPI) listFiles(c echo.Context) error {
	tags := c.QueryParams()["tags[]"]
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 100
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.files))
	for id, file := range f.files {
		if file.HasTags(tags...) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	slices.Reverse(ids)

	out := make([]storagetypes.FileResource, 0, limit)
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, *f.files[ids[i]])
	}
	return c.JSON(http.StatusOK, out)
}

func (f *FakeStorageAPI) startJobLocked(operation, tableID string, finish func() (int64, error)) storagetypes.Job {
	f.nextID++
	job := storagetypes.Job{
		ID:        f.nextID,
		Status:    storagetypes.JobWaiting,
		Operation: operation,
		TableID:   tableID,
		URL:       fmt.Sprintf("%s/v2/storage/jobs/%d", f.server.URL, f.nextID),
		Created:   storagetypes.Timestamp{Time: time.Now().Truncate(time.Second)},
	}
	f.jobs[job.ID] = &fakeJob{job: job, finish: finish}
	return job
}

func (f *FakeStorageAPI) jobDetail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid job id", "storage.validation")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fj, ok := f.jobs[id]
	if !ok {
		return apiError(c, http.StatusNotFound, fmt.Sprintf("Job %d not found", id), "storage.jobs.notFound")
	}

	if !fj.job.Status.Terminal() {
		fj.polls++
		switch {
		case f.stallJobs || fj.polls < f.jobPolls:
			if fj.polls > 1 || f.stallJobs {
				fj.job.Status = storagetypes.JobProcessing
			}
		default:
			fileID, ferr := fj.finish()
			if ferr != nil {
				fj.job.Status = storagetypes.JobErrored
				fj.job.Error = &storagetypes.JobError{Code: "storage.jobFailed", Message: ferr.Error()}
			} else {
				fj.job.Status = storagetypes.JobSuccess
				if fileID != 0 {
					fj.job.Results = &storagetypes.JobResults{File: &storagetypes.JobFileRef{ID: fileID}}
				}
			}
		}
	}

	return c.JSON(http.StatusOK, fj.job)
}

func (f *FakeStorageAPI) exportTable(c echo.Context) error {
	tableID := c.Param("id")
	limit, _ := strconv.Atoi(c.FormValue("limit"))
	var columns []string
	if cols := c.FormValue("columns"); cols != "" {
		columns = strings.Split(cols, ",")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	job := f.startJobLocked("tableExport", tableID, func() (int64, error) {
		table, ok := f.tables[tableID]
		if !ok {
			return 0, fmt.Errorf("The table %q was not found", tableID)
		}
		rows := table.project(columns)
		if limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}
		per := max(f.rowsPerSlice, 1)
		var parts [][]byte
		for i := 0; i < len(rows); i += per {
			var buf bytes.Buffer
			for _, row := range rows[i:min(i+per, len(rows))] {
				buf.WriteString(quoteRow(row))
			}
			parts = append(parts, buf.Bytes())
		}
		file := f.addSlicedLocked(tableID+".csv", parts)
		return file.ID, nil
	})

	return c.JSON(http.StatusAccepted, job)
}

func (t *fakeTable) project(columns []string) [][]string {
	if len(columns) == 0 {
		return slices.Clone(t.rows)
	}
	idx := make([]int, 0, len(columns))
	for _, col := range columns {
		idx = append(idx, slices.Index(t.columns, col))
	}
	out := make([][]string, 0, len(t.rows))
	for _, row := range t.rows {
		projected := make([]string, 0, len(idx))
		for _, i := range idx {
			if i >= 0 && i < len(row) {
				projected = append(projected, row[i])
			} else {
				projected = append(projected, "")
			}
		}
		out = append(out, projected)
	}
	return out
}

func (f *FakeStorageAPI) addSlicedLocked(name string, parts [][]byte) *storagetypes.FileResource {
	file := f.newFileLocked(name)
	file.IsSliced = true
	prefix := file.S3Path.Key
	file.S3Path.Key = prefix + "manifest"

	var size int64
	var entries []string
	for i, part := range parts {
		key := fmt.Sprintf("%s%04d_part_00", prefix, i)
		f.store.Put(file.S3Path.Bucket, key, part)
		size += int64(len(part))
		entries = append(entries, fmt.Sprintf(`{"url":"s3://%s/%s","mandatory":true}`, file.S3Path.Bucket, key))
	}
	manifest := `{"entries":[` + strings.Join(entries, ",") + `]}`
	f.store.Put(file.S3Path.Bucket, file.S3Path.Key, []byte(manifest))

	file.SizeBytes = size
	f.files[file.ID] = file
	return file
}

func (f *FakeStorageAPI) importTable(c echo.Context) error {
	tableID := c.Param("id")
	fileID, _ := strconv.ParseInt(c.FormValue("dataFileId"), 10, 64)
	incremental := formBool(c, "incremental")
	withoutHeaders := formBool(c, "withoutHeaders")
	delimiter := c.FormValue("delimiter")

	f.mu.Lock()
	defer f.mu.Unlock()

	job := f.startJobLocked("tableImport", tableID, func() (int64, error) {
		file, ok := f.files[fileID]
		if !ok {
			return 0, fmt.Errorf("File %d not found", fileID)
		}
		obj, ok := f.store.Object(file.S3Path.Bucket, file.S3Path.Key)
		if !ok {
			return 0, fmt.Errorf("File %d has no content", fileID)
		}
		records, err := readCSV(file.Name, obj.Data, delimiter)
		if err != nil {
			return 0, fmt.Errorf("Invalid CSV: %w", err)
		}

		table, exists := f.tables[tableID]
		if !exists {
			table = &fakeTable{}
			f.tables[tableID] = table
		}
		if !withoutHeaders && len(records) > 0 {
			if len(table.columns) == 0 {
				table.columns = records[0]
			}
			records = records[1:]
		}
		if incremental {
			table.rows = append(table.rows, records...)
		} else {
			table.rows = records
		}
		return 0, nil
	})

	return c.JSON(http.StatusAccepted, job)
}

func readCSV(name string, data []byte, delimiter string) ([][]string, error) {
	var r io.Reader = bytes.NewReader(data)
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	cr := csv.NewReader(r)
	if delimiter != "" {
		cr.Comma = []rune(delimiter)[0]
	}
	return cr.ReadAll()
}

func quoteRow(row []string) string {
	quoted := make([]string, len(row))
	for i, v := range row {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",") + "\n"
}
