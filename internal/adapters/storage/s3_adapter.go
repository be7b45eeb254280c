package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/carriershark/backend/internal/domain/providers"
	apperrors "github.com/carriershark/backend/pkg/errors"
	"github.com/carriershark/backend/pkg/retry"
)

// S3API is the subset of the S3 client the adapter uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Adapter implements ObjectStorage over any S3-compatible endpoint
type S3Adapter struct {
	api      S3API
	retryCfg retry.Config
}

// NewS3Adapter creates a new S3 storage adapter
func NewS3Adapter(api S3API) providers.ObjectStorage {
	return &S3Adapter{
		api:      api,
		retryCfg: retry.DefaultConfig(),
	}
}

// Put stores data under bucket/key with the given content type
func (a *S3Adapter) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	err := retry.Do(ctx, a.retryCfg, func() error {
		_, callErr := a.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		return callErr
	})
	if err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to store object %s", key), err)
	}
	return nil
}

// Get retrieves the object stored under bucket/key
func (a *S3Adapter) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, a.retryCfg, func() error {
		out, callErr := a.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if callErr != nil {
			return callErr
		}
		defer out.Body.Close()
		data, callErr = io.ReadAll(out.Body)
		return callErr
	})
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("failed to fetch object %s", key), err)
	}
	return data, nil
}

// List returns the keys under the given prefix
func (a *S3Adapter) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	var continuation *string

	for {
		var out *s3.ListObjectsV2Output
		err := retry.Do(ctx, a.retryCfg, func() error {
			var callErr error
			out, callErr = a.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(bucket),
				Prefix:            aws.String(prefix),
				ContinuationToken: continuation,
			})
			return callErr
		})
		if err != nil {
			return nil, apperrors.NewExternalError(fmt.Sprintf("failed to list objects under %s", prefix), err)
		}

		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}

		if out.NextContinuationToken == nil {
			return keys, nil
		}
		continuation = out.NextContinuationToken
	}
}
