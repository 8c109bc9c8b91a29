// Package archive copies attachment files of expired records to S3-compatible
// object storage before housekeeping removes them locally.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/google/uuid"
)

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Enabled reports whether archiving is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// PutObjectAPI is the part of *s3.Client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) PutObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type S3Archiver struct {
	api    PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Archiver(ctx context.Context, c Config) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3ArchiverWithAPI(client, c.Bucket, c.Prefix), nil
}

func NewS3ArchiverWithAPI(api PutObjectAPI, bucket, prefix string) *S3Archiver {
	if prefix == "" {
		prefix = "records"
	}
	return &S3Archiver{api: api, bucket: bucket, prefix: prefix, now: time.Now}
}

// Key returns the object key for an attachment of record localID.
func (a *S3Archiver) Key(localID int64, name string) string {
	d := a.now().UTC()
	return path.Join(a.prefix,
		fmt.Sprintf("%d/%02d/%02d", d.Year(), d.Month(), d.Day()),
		fmt.Sprint(localID),
		uuid.NewString()+"-"+name)
}

// Archive uploads att and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, localID int64, att *filex.Attachment) (string, error) {
	key := a.Key(localID, att.Name)

	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(att.Data),
		ContentType: aws.String(att.ContentType),
		Metadata:    map[string]string{"local-id": fmt.Sprint(localID)},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
