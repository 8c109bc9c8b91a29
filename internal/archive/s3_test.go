package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestArchive_PutsObject(t *testing.T) {
	api := &fakeS3{}
	a := NewS3ArchiverWithAPI(api, "field-archive", "")
	a.now = func() time.Time { return time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC) }

	key, err := a.Archive(context.Background(), 42, &filex.Attachment{
		Name:        "disc.jpg",
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "records/2026/03/09/42/"), key)
	assert.True(t, strings.HasSuffix(key, "-disc.jpg"), key)
	assert.Equal(t, "field-archive", aws.ToString(api.in.Bucket))
	assert.Equal(t, key, aws.ToString(api.in.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(api.in.ContentType))
	assert.Equal(t, "42", api.in.Metadata["local-id"])
	assert.Equal(t, []byte{0xff, 0xd8}, api.body)
}

func TestArchive_Error(t *testing.T) {
	api := &fakeS3{err: errors.New("AccessDenied")}
	a := NewS3ArchiverWithAPI(api, "b", "p")

	_, err := a.Archive(context.Background(), 1, &filex.Attachment{Name: "x.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
	assert.Contains(t, err.Error(), "put object p/")
}

func TestNewS3Archiver_ConfiguresClient(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	defer func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew }()

	var (
		loadOpts int
		gotOpts  s3.Options
	)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		loadOpts = len(optFns)
		return aws.Config{Region: "af-south-1"}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) PutObjectAPI {
		for _, fn := range optFns {
			fn(&gotOpts)
		}
		return &fakeS3{}
	}

	a, err := NewS3Archiver(context.Background(), Config{
		Bucket: "b", Region: "af-south-1", Endpoint: "http://minio:9000", AccessKey: "k", SecretKey: "s",
	})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 2, loadOpts)
	assert.Equal(t, "http://minio:9000", aws.ToString(gotOpts.BaseEndpoint))
	assert.True(t, gotOpts.UsePathStyle)
}

func TestNewS3Archiver_LoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	defer func() { loadDefaultAWSConfig = orig }()

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no region")
	}

	_, err := NewS3Archiver(context.Background(), Config{Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load aws config")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Bucket: "x"}.Enabled())
}
