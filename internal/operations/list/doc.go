// Package list handles S3 object listing operations.
// Listings are paginated transparently and returned in store order, which
// for S3 is lexicographic by key.
package list
