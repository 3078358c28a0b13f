// Package aws provides thin wrappers around AWS SDK clients used by stackrun.
// This file defines narrow interfaces for the S3 operations needed by the
// orphan bucket sweep and by large-template upload.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ListBucketsAPI defines the subset of the S3 API used to enumerate the
// account's buckets during the orphan sweep.
type ListBucketsAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// ListObjectsV2API defines the subset used to check whether a bucket is empty.
type ListObjectsV2API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// DeleteBucketAPI defines the subset used to remove an empty bucket.
type DeleteBucketAPI interface {
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// PutObjectAPI defines the subset of the S3 API used for uploading templates.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HeadBucketAPI defines the subset used to check bucket existence.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// CreateBucketAPI defines the subset used to create a bucket.
type CreateBucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// PutPublicAccessBlockAPI defines the subset used to block public access.
type PutPublicAccessBlockAPI interface {
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
}

// BucketSweepAPI groups the S3 operations used by the orphan bucket sweep.
type BucketSweepAPI interface {
	ListBucketsAPI
	ListObjectsV2API
	DeleteBucketAPI
}

// TemplateUploadAPI groups the S3 operations needed to stage a template in
// the configured template bucket.
type TemplateUploadAPI interface {
	PutObjectAPI
	HeadBucketAPI
	CreateBucketAPI
	PutPublicAccessBlockAPI
}

// Compile-time checks: *s3.Client satisfies all narrow interfaces.
var (
	_ ListBucketsAPI          = (*s3.Client)(nil)
	_ ListObjectsV2API        = (*s3.Client)(nil)
	_ DeleteBucketAPI         = (*s3.Client)(nil)
	_ PutObjectAPI            = (*s3.Client)(nil)
	_ HeadBucketAPI           = (*s3.Client)(nil)
	_ CreateBucketAPI         = (*s3.Client)(nil)
	_ PutPublicAccessBlockAPI = (*s3.Client)(nil)
	_ BucketSweepAPI          = (*s3.Client)(nil)
	_ TemplateUploadAPI       = (*s3.Client)(nil)
)
