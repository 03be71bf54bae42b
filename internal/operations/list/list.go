package list

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/operations"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// S3Interface defines the S3 operations we need.
type S3Interface interface {
	ListObjectsV2(
		ctx context.Context,
		input *s3.ListObjectsV2Input,
		opts ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// Lister handles listing of S3 objects under a prefix.
type Lister struct {
	client S3Interface
}

// New creates a new Lister.
func New(client S3Interface) *Lister {
	return &Lister{
		client: client,
	}
}

// Config holds configuration for list operations.
type Config struct {
	Bucket   string
	Prefix   string
	PageSize int32
}

// Result represents one page of a listing.
type Result struct {
	Objects           []storagetypes.Object
	IsTruncated       bool
	ContinuationToken string
}

// ListAll pages through every object under the prefix and returns them in
// store order.
func (l *Lister) ListAll(ctx context.Context, config *Config) ([]storagetypes.Object, error) {
	var objects []storagetypes.Object

	paginator := l.ListWithPaginator(config)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)
	}

	return objects, nil
}

// ListWithPaginator creates a paginator for multi-page listing.
func (l *Lister) ListWithPaginator(config *Config) *Paginator {
	return &Paginator{
		client:    l.client,
		config:    config,
		pageSize:  optimalPageSize(config),
		firstPage: true,
	}
}

// Paginator walks a listing one page at a time.
type Paginator struct {
	client            S3Interface
	config            *Config
	pageSize          int32
	continuationToken *string
	hasMorePages      bool
	firstPage         bool
}

// HasMorePages returns true if there are more pages to fetch.
func (p *Paginator) HasMorePages() bool {
	return p.firstPage || p.hasMorePages
}

// NextPage fetches the next page of results.
func (p *Paginator) NextPage(ctx context.Context) (*Result, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.config.Bucket),
		Prefix:  aws.String(p.config.Prefix),
		MaxKeys: aws.Int32(p.pageSize),
	}
	if !p.firstPage && p.continuationToken != nil {
		input.ContinuationToken = p.continuationToken
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("list", p.config.Bucket, p.config.Prefix, operations.Classify(err))
	}

	p.firstPage = false
	p.hasMorePages = aws.ToBool(output.IsTruncated) && output.NextContinuationToken != nil
	p.continuationToken = output.NextContinuationToken

	return convertOutput(output), nil
}

// convertOutput converts S3 output to our Result type.
func convertOutput(output *s3.ListObjectsV2Output) *Result {
	result := &Result{
		Objects:     make([]storagetypes.Object, 0, len(output.Contents)),
		IsTruncated: aws.ToBool(output.IsTruncated),
	}

	if output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}

	for _, obj := range output.Contents {
		result.Objects = append(result.Objects, storagetypes.Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}

	return result
}

// optimalPageSize determines the page size for pagination.
func optimalPageSize(config *Config) int32 {
	if config.PageSize > 0 && config.PageSize <= 1000 {
		return config.PageSize
	}
	// Default to maximum for efficiency
	return 1000
}
