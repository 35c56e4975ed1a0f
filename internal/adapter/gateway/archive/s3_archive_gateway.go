package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ductware/atomtx/internal/application/port/output"
)

// S3ArchiveGateway implements ArchiveGateway using AWS S3
// Bucket structure: s3://<bucket>/<prefix>/snapshots/<snapshotID>/
//   - payload.gz: gzip-compressed snapshot payload
//   - metadata.json: archive entry metadata
type S3ArchiveGateway struct {
	client     S3API // Use interface for testability
	bucketName string
	prefix     string // Optional prefix for all keys (e.g., "atomtx/prod")
}

// S3Config holds S3 archive gateway configuration
type S3Config struct {
	BucketName string // S3 bucket name
	Prefix     string // Optional key prefix
	Region     string // AWS region (optional, uses default if empty)
}

// NewS3ArchiveGateway creates a new S3-based archive gateway
func NewS3ArchiveGateway(cfg S3Config) (*S3ArchiveGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// Override region if specified
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3ArchiveGateway{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     cfg.Prefix,
	}, nil
}

// NewS3ArchiveGatewayWithClient creates a new S3-based archive gateway with custom S3 client
// This is primarily used for testing with mock S3 clients
func NewS3ArchiveGatewayWithClient(client S3API, bucketName, prefix string) *S3ArchiveGateway {
	return &S3ArchiveGateway{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
	}
}

// SaveSnapshot compresses and uploads a snapshot payload to S3
func (g *S3ArchiveGateway) SaveSnapshot(ctx context.Context, req output.SaveSnapshotRequest) (*output.ArchiveEntry, error) {
	compressed, err := compressPayload(req.Content)
	if err != nil {
		return nil, err
	}

	payloadKey := g.buildKey("snapshots", req.SnapshotID, payloadObject)

	entry := output.ArchiveEntry{
		ID:          generateArchiveID(req.Content),
		SnapshotID:  req.SnapshotID,
		Type:        req.Type,
		Checksum:    req.Checksum,
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucketName, payloadKey),
		Compression: compressionGzip,
		Size:        int64(len(compressed)),
		CapturedAt:  req.CapturedAt,
		ArchivedAt:  time.Now(),
		Metadata:    req.Metadata,
	}

	// Upload compressed payload
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucketName),
		Key:         aws.String(payloadKey),
		Body:        bytes.NewReader(compressed),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload payload to S3: %w", err)
	}

	// Save entry as separate JSON object for listing without downloads
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal archive entry: %w", err)
	}

	metadataKey := g.buildKey("snapshots", req.SnapshotID, metadataObject)
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucketName),
		Key:         aws.String(metadataKey),
		Body:        bytes.NewReader(entryJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload archive entry to S3: %w", err)
	}

	return &entry, nil
}

// LoadSnapshot downloads and decompresses an archived snapshot
func (g *S3ArchiveGateway) LoadSnapshot(ctx context.Context, snapshotID string) (*output.ArchivedSnapshot, error) {
	metadataKey := g.buildKey("snapshots", snapshotID, metadataObject)

	metadataObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(metadataKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("archived snapshot not found: %s", snapshotID)
		}
		return nil, fmt.Errorf("download archive entry from S3: %w", err)
	}
	defer metadataObj.Body.Close()

	entryJSON, err := io.ReadAll(metadataObj.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive entry: %w", err)
	}

	var entry output.ArchiveEntry
	if err := json.Unmarshal(entryJSON, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal archive entry: %w", err)
	}

	payloadKey := g.buildKey("snapshots", snapshotID, payloadObject)
	payloadObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(payloadKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download payload from S3: %w", err)
	}
	defer payloadObj.Body.Close()

	compressed, err := io.ReadAll(payloadObj.Body)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	content, err := decompressPayload(compressed, entry.Compression)
	if err != nil {
		return nil, err
	}

	return &output.ArchivedSnapshot{
		Entry:   entry,
		Content: content,
	}, nil
}

// ListSnapshots lists all archived snapshot entries
func (g *S3ArchiveGateway) ListSnapshots(ctx context.Context) ([]*output.ArchiveEntry, error) {
	prefix := g.buildKey("snapshots") + "/"

	listOutput, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucketName),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list S3 objects: %w", err)
	}

	var entries []*output.ArchiveEntry

	// Filter for metadata.json objects
	for _, obj := range listOutput.Contents {
		key := aws.ToString(obj.Key)
		if !strings.HasSuffix(key, metadataObject) {
			continue
		}

		metadataObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(g.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			// Skip entries with download errors
			continue
		}

		entryJSON, err := io.ReadAll(metadataObj.Body)
		metadataObj.Body.Close()
		if err != nil {
			continue
		}

		var entry output.ArchiveEntry
		if err := json.Unmarshal(entryJSON, &entry); err != nil {
			continue
		}

		entries = append(entries, &entry)
	}

	sortEntries(entries)
	return entries, nil
}

// DeleteSnapshot removes an archived snapshot from S3
func (g *S3ArchiveGateway) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	payloadKey := g.buildKey("snapshots", snapshotID, payloadObject)
	metadataKey := g.buildKey("snapshots", snapshotID, metadataObject)

	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(payloadKey),
	})
	if err != nil {
		return fmt.Errorf("delete payload from S3: %w", err)
	}

	_, err = g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(metadataKey),
	})
	if err != nil {
		return fmt.Errorf("delete archive entry from S3: %w", err)
	}

	return nil
}

// buildKey builds an S3 key with the configured prefix
func (g *S3ArchiveGateway) buildKey(parts ...string) string {
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// sortEntries orders archive entries by capture time, then snapshot id
func sortEntries(entries []*output.ArchiveEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CapturedAt.Equal(entries[j].CapturedAt) {
			return entries[i].CapturedAt.Before(entries[j].CapturedAt)
		}
		return entries[i].SnapshotID < entries[j].SnapshotID
	})
}
