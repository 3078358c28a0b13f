// Package template resolves the --template argument into a template body or
// URL that CloudFormation accepts, staging large local templates in S3.
package template

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	sraws "github.com/SpiceLabsHQ/stackrun/internal/aws"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// MaxInlineBodySize is the largest TemplateBody CloudFormation accepts.
// Larger templates must be passed by URL.
const MaxInlineBodySize = 51200

// ErrTemplateTooLarge is returned when a local template exceeds
// MaxInlineBodySize and no template bucket is configured.
var ErrTemplateTooLarge = errors.New("template exceeds the inline size limit; set template_bucket to upload it")

// Load resolves ref, which may be an https:// URL, an s3://bucket/key
// reference or a local file path. Local files above MaxInlineBodySize are
// uploaded with up, which may be nil when no template bucket is configured.
func Load(ctx context.Context, ref, stackName string, up *Uploader) (stack.Template, error) {
	switch {
	case ref == "":
		return stack.Template{}, errors.New("template is required")
	case strings.HasPrefix(ref, "https://"):
		return stack.Template{URL: ref}, nil
	case strings.HasPrefix(ref, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return stack.Template{}, fmt.Errorf("malformed S3 template reference %q: expected s3://bucket/key", ref)
		}
		return stack.Template{URL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)}, nil
	}

	body, err := os.ReadFile(ref)
	if err != nil {
		return stack.Template{}, fmt.Errorf("read template: %w", err)
	}
	if len(body) <= MaxInlineBodySize {
		return stack.Template{Body: string(body)}, nil
	}
	if up == nil {
		return stack.Template{}, fmt.Errorf("%s is %d bytes: %w", ref, len(body), ErrTemplateTooLarge)
	}

	url, err := up.Upload(ctx, stackName, body)
	if err != nil {
		return stack.Template{}, err
	}
	return stack.Template{URL: url}, nil
}

// Uploader stages templates in a per-account bucket.
type Uploader struct {
	client sraws.TemplateUploadAPI
	bucket string
	region string
}

// NewUploader constructs an Uploader for bucket in region.
func NewUploader(client sraws.TemplateUploadAPI, bucket, region string) *Uploader {
	return &Uploader{client: client, bucket: bucket, region: region}
}

// Upload stores body under a content-addressed key and returns the URL
// CloudFormation should read it from. The bucket is created with public
// access blocked if it does not exist.
func (u *Uploader) Upload(ctx context.Context, stackName string, body []byte) (string, error) {
	if err := ensureBucket(ctx, u.client, u.bucket, u.region); err != nil {
		return "", fmt.Errorf("ensure S3 bucket %q: %w", u.bucket, err)
	}

	sum := sha256.Sum256(body)
	key := fmt.Sprintf("templates/%s/%s.template", stackName, hex.EncodeToString(sum[:]))
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("upload template to s3://%s/%s: %w", u.bucket, key, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key), nil
}

// ensureBucket checks whether bucket exists and creates it if not.
func ensureBucket(ctx context.Context, client sraws.TemplateUploadAPI, bucket, region string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	var noSuchBucket *s3types.NoSuchBucket
	var notFound *s3types.NotFound
	if !errors.As(err, &noSuchBucket) && !errors.As(err, &notFound) {
		return fmt.Errorf("head bucket: %w", err)
	}

	// us-east-1 must not carry a LocationConstraint.
	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if region != "us-east-1" {
		createInput.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	if _, err := client.CreateBucket(ctx, createInput); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	t := true
	if _, err := client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       &t,
			BlockPublicPolicy:     &t,
			IgnorePublicAcls:      &t,
			RestrictPublicBuckets: &t,
		},
	}); err != nil {
		return fmt.Errorf("put public access block on %q: %w", bucket, err)
	}

	return nil
}
