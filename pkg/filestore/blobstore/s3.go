package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the S3-backed public-area store (grounded on
// dittofs pkg/blocks/store/s3.Config).
type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool

	// AccessKeyID/SecretAccessKey, when both set, bypass the ambient AWS
	// credential chain with a static provider — needed for S3-compatible
	// endpoints (MinIO, etc.) that aren't part of that chain.
	AccessKeyID     string
	SecretAccessKey string
}

// S3 is an S3-backed implementation of Store, used when a deployment
// wants the public area to live in object storage instead of local disk
// (§4.1 public_root may be an s3:// URI).
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3FromConfig builds an S3 client from the ambient AWS config chain
// and wraps it as a Store.
func NewS3FromConfig(ctx context.Context, cfg S3Config) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}, nil
}

func (st *S3) fullKey(key string) string { return st.prefix + key }

func (st *S3) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.fullKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (st *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := st.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.fullKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

func (st *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := st.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.fullKey(key)),
	})
	if err != nil {
		var nf *types.NotFound
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil
		}
		_ = nf
		return false, nil
	}
	return true, nil
}

func (st *S3) Rename(ctx context.Context, srcKey, dstKey string) error {
	src := fmt.Sprintf("%s/%s", st.bucket, st.fullKey(srcKey))
	_, err := st.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(st.bucket),
		Key:        aws.String(st.fullKey(dstKey)),
		CopySource: aws.String(src),
	})
	if err != nil {
		return fmt.Errorf("s3 copy %s -> %s: %w", srcKey, dstKey, err)
	}
	return st.Remove(ctx, srcKey)
}

func (st *S3) Remove(ctx context.Context, key string) error {
	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}
