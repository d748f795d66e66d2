// Package wav persists captured utterances as 16-bit PCM WAV files.
//
// This is the capture pipeline's only true I/O boundary: the session hands a
// finalized sample buffer to a [Sink] and surfaces any failure verbatim;
// the pipeline itself never retries or interprets sink errors.
package wav

import (
	"fmt"
	"os"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// bitDepth is the persisted sample format. The pipeline quantizes to int16
// before writing, so the depth is fixed.
const bitDepth = 16

// Sink writes a finalized sample buffer to a file artifact.
type Sink interface {
	// Write persists samples as a mono PCM file at path. A non-nil error
	// means the artifact must not be assumed to exist or be complete.
	Write(samples []int16, sampleRate int, path string) error
}

// FileSink writes WAV files to the local filesystem, creating parent
// directories as needed.
type FileSink struct{}

// NewFileSink returns a ready FileSink.
func NewFileSink() *FileSink {
	return &FileSink{}
}

// Write implements [Sink].
func (s *FileSink) Write(samples []int16, sampleRate int, path string) error {
	if sampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("wav: create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav: create %q: %w", path, err)
	}

	enc := gowav.NewEncoder(f, sampleRate, bitDepth, 1, 1)

	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("wav: write %q: %w", path, err)
	}

	// Close finalizes the RIFF header with the real data length; a partial
	// close leaves an unreadable file, so both errors matter.
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("wav: finalize %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("wav: close %q: %w", path, err)
	}
	return nil
}

var _ Sink = (*FileSink)(nil)
