// Package audiofile validates uploaded audio captures and extracts the
// metadata recorded on the ingestion job. Malformed audio is a permanent
// failure, the job is never retried for it.
package audiofile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-audio/wav"

	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// Info describes a validated WAV capture.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	FileSize   int64
	Checksum   string // hex-encoded SHA-256 of the raw bytes
}

// Probe parses the WAV header of data and returns capture metadata.
func Probe(data []byte) (*Info, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, errors.Newf("not a valid WAV file").
			Component("audiofile").
			Category(errors.CategoryValidation).
			Context("size_bytes", len(data)).
			Build()
	}

	duration, err := decoder.Duration()
	if err != nil {
		return nil, errors.New(err).
			Component("audiofile").
			Category(errors.CategoryValidation).
			Build()
	}

	return &Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Duration:   duration,
		FileSize:   int64(len(data)),
		Checksum:   Checksum(data),
	}, nil
}

// Checksum returns the hex-encoded SHA-256 of data, as recorded on the
// ingestion job for upload integrity checks.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
