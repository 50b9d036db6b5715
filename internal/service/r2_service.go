package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	cfg "github.com/maheshrc27/autopost/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ImageArchive keeps a copy of generated images and returns a public URL.
type ImageArchive interface {
	ArchiveImage(ctx context.Context, userID int64, image []byte) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type R2Service struct {
	config cfg.Config
	client objectPutter
}

// NewR2Service returns nil when R2 is not configured; a nil *R2Service
// archives nothing.
func NewR2Service(c cfg.Config) (*R2Service, error) {
	if c.R2.AccountID == "" || c.R2.BucketName == "" {
		return nil, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})
	return &R2Service{config: c, client: client}, nil
}

func (r *R2Service) ArchiveImage(ctx context.Context, userID int64, image []byte) (string, error) {
	if r == nil {
		return "", nil
	}

	contentType, ext := "application/octet-stream", "bin"
	if kind, err := filetype.Match(image); err == nil && kind != filetype.Unknown {
		contentType, ext = kind.MIME.Value, kind.Extension
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("generated/%d/%s.%s", userID, id, ext)

	if err := r.UploadToR2(ctx, key, image, contentType); err != nil {
		return "", err
	}
	return strings.TrimRight(r.config.R2.PublicURL, "/") + "/" + key, nil
}

func (r *R2Service) UploadToR2(ctx context.Context, key string, file []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
