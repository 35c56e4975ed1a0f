package archive

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Object names within a snapshot's archive directory
const (
	payloadObject  = "payload.gz"
	metadataObject = "metadata.json"
)

// compressionGzip tags gzip-compressed payloads in archive entries
const compressionGzip = "gzip"

// compressPayload gzips a snapshot payload for storage
func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish compression: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressPayload reverses compressPayload. Payloads stored without
// compression pass through unchanged.
func decompressPayload(data []byte, compression string) ([]byte, error) {
	if compression != compressionGzip {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open compressed payload: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return plain, nil
}

// generateArchiveID generates a unique archive object ID based on content hash
func generateArchiveID(content []byte) string {
	hash := sha256.Sum256(content)
	hashStr := hex.EncodeToString(hash[:8]) // Use first 8 bytes (16 hex chars)
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%s-%d", hashStr, timestamp)
}
