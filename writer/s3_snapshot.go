// Package writer persists raw ticker snapshots so that any scan result can
// be replayed against the exact market data that produced it.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// S3SnapshotWriter uploads one JSON document per scan under
// <prefix>/snapshots/YYYY/MM/DD/<scan-id>.json.
type S3SnapshotWriter struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

type snapshotDocument struct {
	ScanID    string             `json:"scan_id"`
	Source    string             `json:"source"`
	FetchedAt time.Time          `json:"fetched_at"`
	Tickers   []models.RawTicker `json:"tickers"`
}

// NewS3SnapshotWriter builds the archiver and verifies that credentials are
// actually resolvable, so a misconfigured environment fails at startup
// instead of on the first scan.
func NewS3SnapshotWriter(ctx context.Context, cfg appconfig.S3Config) (*S3SnapshotWriter, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("failed to resolve AWS credentials: %w", err)
	}

	log := logger.GetLogger()
	log.WithComponent("s3_writer").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
		"prefix": cfg.Prefix,
	}).Info("s3 snapshot writer initialized")

	return &S3SnapshotWriter{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    log,
	}, nil
}

// Archive uploads the snapshot keyed by fetch date and scan ID.
func (w *S3SnapshotWriter) Archive(ctx context.Context, scanID string, snapshot models.TickerSnapshot) error {
	doc := snapshotDocument{
		ScanID:    scanID,
		Source:    string(snapshot.Source),
		FetchedAt: snapshot.FetchedAt,
		Tickers:   snapshot.Tickers,
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := w.objectKey(scanID, snapshot.FetchedAt)
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload snapshot to s3://%s/%s: %w", w.bucket, key, err)
	}

	w.log.WithComponent("s3_writer").WithFields(logger.Fields{
		"scan_id": scanID,
		"key":     key,
		"tickers": len(snapshot.Tickers),
		"bytes":   len(payload),
	}).Debug("snapshot archived")

	return nil
}

func (w *S3SnapshotWriter) objectKey(scanID string, fetchedAt time.Time) string {
	day := fetchedAt.UTC().Format("2006/01/02")
	if w.prefix == "" {
		return fmt.Sprintf("snapshots/%s/%s.json", day, scanID)
	}
	return fmt.Sprintf("%s/snapshots/%s/%s.json", w.prefix, day, scanID)
}
