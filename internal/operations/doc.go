// Package operations contains the object-store operations used by file
// transfers: put, get and list. Each lives in its own subpackage and talks
// to S3 only through s3api.S3API.
//
// Every SDK error leaving a subpackage has been through Classify, so callers
// can branch on errors.ErrAccessDenied, errors.ErrObjectNotFound and
// errors.ErrTransfer without knowing S3 error codes.
package operations
