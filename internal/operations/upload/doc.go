// Package upload puts a local file into the object store in one request
// using the delegated credentials of a prepared upload.
package upload
