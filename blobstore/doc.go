// Package blobstore moves finished track tables between machines and object
// storage.
//
// A track table is a single immutable file once its writer finalizes, which
// makes it a natural blob: upload after tracking finishes, download before
// analysis. The package defines small store/blob interfaces plus helpers for
// whole-file transfer:
//
//	Open(ctx, name) (Blob, error)           // read
//	Create(ctx, name) (WritableBlob, error) // streaming write
//	Upload / Download / FetchAll            // whole-table transfer
//
// Backends: local filesystem (mmap-backed reads), in-memory (tests), MinIO
// (blobstore/minio) and S3 (blobstore/s3).
package blobstore
