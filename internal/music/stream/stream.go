// Package stream turns a media URL into Opus frames for a Discord voice
// connection: ffmpeg decodes to s16le PCM, gopus encodes 20ms frames.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz

	FrameDuration = 20 * time.Millisecond
)

// FFmpeg opens PCM streams by running an ffmpeg process per stream.
type FFmpeg struct {
	Path string
	Log  *zap.Logger
}

func (f *FFmpeg) binary() string {
	if f == nil || f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

func (f *FFmpeg) logger() *zap.Logger {
	if f == nil || f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}

// Args builds the ffmpeg command line for url starting at seek.
func Args(url string, seek time.Duration, live bool) []string {
	args := make([]string, 0, 20)
	if seek > 0 && !live {
		args = append(args, "-ss", strconv.FormatFloat(seek.Seconds(), 'f', 3, 64))
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args,
		"-i", url,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
	return args
}

// Open starts ffmpeg and returns its PCM output. Closing the reader kills
// the process.
func (f *FFmpeg) Open(ctx context.Context, url string, seek time.Duration, live bool) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, f.binary(), Args(url, seek, live)...)

	stderr := &limitedBuffer{max: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	return &process{cmd: cmd, stdout: stdout, stderr: stderr, log: f.logger()}, nil
}

type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *limitedBuffer
	log    *zap.Logger
	once   sync.Once
}

func (p *process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *process) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.stdout.Close()
		err := p.cmd.Wait()

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.log.Debug("ffmpeg wait", zap.Error(err))
		}
		if out := strings.TrimSpace(p.stderr.String()); out != "" {
			p.log.Debug("ffmpeg stderr", zap.String("output", out))
		}
	})
	return nil
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
