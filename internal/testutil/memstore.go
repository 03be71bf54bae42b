package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbcstorage/storage-go/internal/s3api"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// StoredObject is an object held by MemoryS3 together with the headers it
// was written with.
type StoredObject struct {
	Data                 []byte
	ContentType          string
	ContentDisposition   string
	ContentEncoding      string
	ACL                  types.ObjectCannedACL
	ServerSideEncryption types.ServerSideEncryption
	LastModified         time.Time
}

// GetFault describes an injected GetObject failure for one key.
type GetFault struct {
	// Err is returned by GetObject itself.
	Err error
	// BreakAfter makes the body fail after this many bytes when positive.
	BreakAfter int64
	// Times limits how often the fault fires; zero means always.
	Times int
}

// MemoryS3 is an in-memory object store implementing s3api.S3API. Listings
// are lexicographic and paginated like S3.
type MemoryS3 struct {
	mu       sync.Mutex
	objects  map[string]map[string]*StoredObject
	faults   map[string]*GetFault
	denied   bool
	issued   []storagetypes.Credentials
	getCalls map[string]int

	// PageSize bounds ListObjectsV2 pages. Zero means 1000.
	PageSize int
}

// NewMemoryS3 creates an empty in-memory store.
func NewMemoryS3() *MemoryS3 {
	return &MemoryS3{
		objects:  make(map[string]map[string]*StoredObject),
		faults:   make(map[string]*GetFault),
		getCalls: make(map[string]int),
	}
}

// Put stores data under bucket/key.
func (m *MemoryS3) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(bucket, key, &StoredObject{Data: bytes.Clone(data), LastModified: time.Now()})
}

func (m *MemoryS3) putLocked(bucket, key string, obj *StoredObject) {
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]*StoredObject)
	}
	m.objects[bucket][key] = obj
}

// Object returns the stored object at bucket/key.
func (m *MemoryS3) Object(bucket, key string) (*StoredObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket][key]
	return obj, ok
}

// Keys returns the sorted keys in bucket.
func (m *MemoryS3) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedKeysLocked(bucket, "")
}

// InjectGetFault arranges for GetObject on key to fail as described.
func (m *MemoryS3) InjectGetFault(key string, fault GetFault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := fault
	m.faults[key] = &f
}

// GetCalls returns how often GetObject was called for key.
func (m *MemoryS3) GetCalls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls[key]
}

// DenyAccess makes every subsequent call fail with AccessDenied.
func (m *MemoryS3) DenyAccess(denied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = denied
}

// Factory returns an object-store factory handing out this store. It
// records the credentials of every call and rejects incomplete ones.
func (m *MemoryS3) Factory() storagetypes.ObjectStoreFactory {
	return func(_ context.Context, creds storagetypes.Credentials, _ string) (storagetypes.ObjectStoreAPI, error) {
		m.mu.Lock()
		m.issued = append(m.issued, creds)
		m.mu.Unlock()
		if !creds.Complete() {
			return nil, fmt.Errorf("incomplete credentials: %s", creds)
		}
		return m, nil
	}
}

// IssuedCredentials returns the credentials passed to Factory so far.
func (m *MemoryS3) IssuedCredentials() []storagetypes.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storagetypes.Credentials(nil), m.issued...)
}

// PutObject stores the request body.
func (m *MemoryS3) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	if params.Body != nil {
		var err error
		data, err = io.ReadAll(params.Body)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return nil, AccessDeniedError()
	}

	m.putLocked(aws.ToString(params.Bucket), aws.ToString(params.Key), &StoredObject{
		Data:                 data,
		ContentType:          aws.ToString(params.ContentType),
		ContentDisposition:   aws.ToString(params.ContentDisposition),
		ContentEncoding:      aws.ToString(params.ContentEncoding),
		ACL:                  params.ACL,
		ServerSideEncryption: params.ServerSideEncryption,
		LastModified:         time.Now(),
	})

	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

// GetObject returns the stored object, applying any injected fault.
func (m *MemoryS3) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls[key]++
	if m.denied {
		return nil, AccessDeniedError()
	}

	var fault *GetFault
	if f, ok := m.faults[key]; ok {
		fault = f
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				delete(m.faults, key)
			}
		}
	}
	if fault != nil && fault.Err != nil {
		return nil, fault.Err
	}

	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, NoSuchKeyError()
	}

	var body io.Reader = bytes.NewReader(obj.Data)
	if fault != nil && fault.BreakAfter > 0 {
		body = &brokenReader{r: body, remaining: fault.BreakAfter}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(body),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		ETag:          aws.String(etag(obj.Data)),
		LastModified:  aws.Time(obj.LastModified),
	}, nil
}

// ListObjectsV2 lists keys under a prefix in lexicographic order.
func (m *MemoryS3) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	_ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return nil, AccessDeniedError()
	}

	bucket := aws.ToString(params.Bucket)
	keys := m.sortedKeysLocked(bucket, aws.ToString(params.Prefix))

	after := aws.ToString(params.ContinuationToken)
	if after == "" {
		after = aws.ToString(params.StartAfter)
	}
	if after != "" {
		idx := sort.SearchStrings(keys, after)
		if idx < len(keys) && keys[idx] == after {
			idx++
		}
		keys = keys[idx:]
	}

	limit := m.PageSize
	if params.MaxKeys != nil && int(*params.MaxKeys) > 0 && (limit == 0 || int(*params.MaxKeys) < limit) {
		limit = int(*params.MaxKeys)
	}
	if limit <= 0 {
		limit = 1000
	}

	truncated := len(keys) > limit
	if truncated {
		keys = keys[:limit]
	}

	out := &s3.ListObjectsV2Output{
		Name:        params.Bucket,
		Prefix:      params.Prefix,
		IsTruncated: aws.Bool(truncated),
		KeyCount:    aws.Int32(int32(len(keys))),
	}
	for _, k := range keys {
		obj := m.objects[bucket][k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.Data))),
			ETag:         aws.String(etag(obj.Data)),
			LastModified: aws.Time(obj.LastModified),
		})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}

	return out, nil
}

func (m *MemoryS3) sortedKeysLocked(bucket, prefix string) []string {
	keys := make([]string, 0, len(m.objects[bucket]))
	for k := range m.objects[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// ErrConnectionReset is the error a broken body returns.
var ErrConnectionReset = fmt.Errorf("read tcp: connection reset by peer")

type brokenReader struct {
	r         io.Reader
	remaining int64
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, ErrConnectionReset
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	if err == io.EOF {
		return n, ErrConnectionReset
	}
	return n, err
}

var _ s3api.S3API = (*MemoryS3)(nil)
