// Package download streams objects from the object store into local
// writers with progress tracking and pooled copy buffers.
package download
