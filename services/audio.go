package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FFmpeg converts uploaded audio (typically AAC from mobile recorders) to MP3.
type FFmpeg struct {
	bin string
}

// NewFFmpeg uses the ffmpeg binary at bin, or "ffmpeg" from PATH.
func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

// ToMP3 converts audio to MP3 through temporary files that are always removed.
func (f *FFmpeg) ToMP3(ctx context.Context, audio []byte, ext string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "spotaudio-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if ext == "" {
		ext = ".aac"
	}
	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "output.mp3")
	if err := os.WriteFile(in, audio, 0o600); err != nil {
		return nil, fmt.Errorf("write temp audio: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin, "-y", "-loglevel", "error", "-i", in, "-f", "mp3", out)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg conversion failed: %w: %s", err, stderr.String())
	}

	b, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted audio: %w", err)
	}
	return b, nil
}
