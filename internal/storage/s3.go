package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// cidMetadataKey is where IPFS-pinning S3 gateways report the content identifier of an object
const cidMetadataKey = "cid"

// S3Config configures an S3-compatible bucket that pins objects to IPFS
type S3Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	GatewayURL string
}

// S3Uploader stores images through an S3-compatible API and resolves their IPFS CID
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	prefix  string
	gateway string
	logger  *zap.Logger
}

// NewS3Uploader creates a new uploader
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("[STORAGE] bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("[STORAGE] failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		gateway: strings.TrimRight(cfg.GatewayURL, "/"),
		logger:  logger,
	}, nil
}

// UploadImage puts the image and returns its CID when the gateway reports one,
// or an s3:// reference otherwise.
func (u *S3Uploader) UploadImage(ctx context.Context, data []byte, name string) (Upload, error) {
	key := u.objectKey(name)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return Upload{}, fmt.Errorf("failed to upload image: %w", err)
	}

	head, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read uploaded image metadata: %w", err)
	}

	upload := u.resolve(key, head.Metadata[cidMetadataKey])
	u.logger.Debug("image stored",
		zap.String("key", key),
		zap.String("remote_ref", upload.RemoteRef),
	)
	return upload, nil
}

func (u *S3Uploader) objectKey(name string) string {
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}

func (u *S3Uploader) resolve(key, cid string) Upload {
	if cid == "" {
		return Upload{RemoteRef: fmt.Sprintf("s3://%s/%s", u.bucket, key)}
	}
	upload := Upload{RemoteRef: "ipfs://" + cid}
	if u.gateway != "" {
		upload.GatewayURL = u.gateway + "/ipfs/" + cid
	}
	return upload
}
