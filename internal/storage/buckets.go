// Package storage adapts S3 to the bucket operations used by the orphan
// bucket sweep.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	sraws "github.com/SpiceLabsHQ/stackrun/internal/aws"
)

// ErrBucketNotFound is returned when the bucket no longer exists.
var ErrBucketNotFound = errors.New("bucket does not exist")

// Buckets lists, inspects and deletes S3 buckets.
type Buckets struct {
	client sraws.BucketSweepAPI
	region string
}

// NewBuckets constructs a Buckets adapter. When region is set, ListBuckets
// only returns buckets in that region, which are the only ones the client
// can inspect and delete without a redirect.
func NewBuckets(client sraws.BucketSweepAPI, region string) *Buckets {
	return &Buckets{client: client, region: region}
}

// ListBuckets returns the names from a single ListBuckets call.
func (b *Buckets) ListBuckets(ctx context.Context) ([]string, error) {
	in := &s3.ListBucketsInput{}
	if b.region != "" {
		in.BucketRegion = aws.String(b.region)
	}
	out, err := b.client.ListBuckets(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		names = append(names, aws.ToString(bucket.Name))
	}
	return names, nil
}

// ListObjects returns up to limit keys from bucket.
func (b *Buckets) ListObjects(ctx context.Context, bucket string, limit int32) ([]string, error) {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list objects in %q: %w", bucket, translateError(err))
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys, nil
}

// DeleteBucket deletes an empty bucket. S3 refuses to delete a bucket that
// still holds objects.
func (b *Buckets) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("delete bucket %q: %w", bucket, translateError(err))
	}
	return nil
}

func translateError(err error) error {
	var noSuchBucket *s3types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
	}
	return err
}
