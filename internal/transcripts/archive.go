// Package transcripts archives raw call transcripts to object storage so
// they outlive the in-memory session. Optional; a nil archive is a no-op.
package transcripts

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vocero/platform/apperr"
	"vocero/platform/config"
	"vocero/platform/logger"
)

// Archive writes transcript payloads to a MinIO bucket. Safe to use with a
// nil receiver.
type Archive struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewArchive connects to object storage and ensures the transcript bucket
// exists. Returns nil without error when storage is not configured.
func NewArchive(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*Archive, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}
	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to connect to object storage", err)
	}
	bucket := cfg.GetMinioBucketTranscripts()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check transcript bucket", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to create transcript bucket", err)
		}
	}
	return &Archive{client: client, bucket: bucket, log: log}, nil
}

// Archive stores one transcript as JSON keyed by conversation id and day.
func (a *Archive) Archive(ctx context.Context, conversationID string, body []byte) error {
	if a == nil {
		return nil
	}
	key := fmt.Sprintf("%s/%s.json", time.Now().UTC().Format("2006-01-02"), conversationID)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "failed to archive transcript", err)
	}
	return nil
}
