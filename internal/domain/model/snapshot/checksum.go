package snapshot

import (
	"crypto/sha256"
	"fmt"
)

// ChecksumAlgorithm represents the hashing algorithm used
type ChecksumAlgorithm string

const (
	// ChecksumSHA256 is the default checksum algorithm
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
)

// CalculateDataChecksum computes the hex-encoded checksum of a payload
func CalculateDataChecksum(data []byte, algorithm ChecksumAlgorithm) (string, error) {
	switch algorithm {
	case ChecksumSHA256:
		hash := sha256.Sum256(data)
		return fmt.Sprintf("%x", hash), nil

	default:
		return "", fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}
}

// ValidateDataChecksum verifies a payload against an expected checksum
func ValidateDataChecksum(data []byte, expected string, algorithm ChecksumAlgorithm) error {
	if expected == "" {
		return fmt.Errorf("no expected checksum provided")
	}

	current, err := CalculateDataChecksum(data, algorithm)
	if err != nil {
		return fmt.Errorf("calculate current checksum: %w", err)
	}

	if current != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, current)
	}
	return nil
}
