package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
)

// S3Store uploads blobs to an S3 compatible bucket with a public-read ACL.
type S3Store struct {
	client  s3iface.S3API
	bucket  string
	baseURL string
}

var _ profile.BlobStore = (*S3Store)(nil)

func NewS3Store(conf *core.Config) (*S3Store, error) {
	bc := conf.Blob
	awsConf := &aws.Config{
		Region:     aws.String(bc.S3Region),
		DisableSSL: aws.Bool(!bc.S3UseSSL),
	}
	if bc.S3AccessKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(bc.S3AccessKey, bc.S3SecretKey, "")
	}
	if bc.S3Endpoint != "" {
		awsConf.Endpoint = aws.String(bc.S3Endpoint)
		awsConf.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}

	baseURL := bc.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bc.S3Bucket, bc.S3Region)
	}
	return newS3Store(s3.New(sess), bc.S3Bucket, baseURL), nil
}

func newS3Store(client s3iface.S3API, bucket, baseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, baseURL: baseURL}
}

func (s *S3Store) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           aws.String(s3.ObjectCannedACLPublicRead),
	})
	if err != nil {
		return "", core.NewTransientError(errors.Wrap(err, "uploading to s3"))
	}
	return joinURL(s.baseURL, path), nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return core.NewTransientError(errors.Wrap(err, "deleting from s3"))
	}
	return nil
}
