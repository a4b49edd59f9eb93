// Package s3 implements blobstore.BlobStore on Amazon S3 using the AWS SDK
// v2, with multipart streaming uploads via the s3 transfer manager.
package s3
