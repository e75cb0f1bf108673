package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/wakefire/wakefire/internal/errors"
)

const (
	wavBitDepth     = 16
	wavPCMFormat    = 1
	debugDirPerm    = 0o755
	debugTimeLayout = "20060102-150405.000"
)

// WAVSink writes captured frames as 16-bit mono PCM WAV files, one file per
// call, into a directory.
type WAVSink struct {
	dir    string
	now    func() time.Time
	encode func(w io.WriteSeeker, sampleRate int, frames [][]int16) error
}

// NewWAVSink returns a sink writing into dir. The directory is created on
// first write.
func NewWAVSink(dir string) *WAVSink {
	return &WAVSink{dir: dir, now: time.Now, encode: encodeWAV}
}

// Write stores frames as <dir>/<device>_<timestamp>.wav and returns the path.
// A file that could not be completely written is removed.
func (s *WAVSink) Write(deviceName string, sampleRate int, frames [][]int16) (written string, err error) {
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.wav", sanitizeFileName(deviceName), s.now().Format(debugTimeLayout)))

	if err := os.MkdirAll(s.dir, debugDirPerm); err != nil {
		return "", debugWriteError(err, deviceName, path, "create_dir")
	}

	out, err := os.Create(path)
	if err != nil {
		return "", debugWriteError(err, deviceName, path, "create_file")
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = debugWriteError(closeErr, deviceName, path, "close_file")
		}
		if err != nil {
			_ = os.Remove(path)
			written = ""
		}
	}()

	if err := s.encode(out, sampleRate, frames); err != nil {
		return "", debugWriteError(err, deviceName, path, "encode")
	}
	return path, nil
}

func encodeWAV(w io.WriteSeeker, sampleRate int, frames [][]int16) error {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	samples := make([]int, 0, total)
	for _, f := range frames {
		for _, v := range f {
			samples = append(samples, int(v))
		}
	}

	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 1, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func debugWriteError(err error, device, path, op string) error {
	return errors.New(err).
		Component("audio").
		Category(errors.CategoryDebugWrite).
		Context("device", device).
		Context("path", path).
		Context("operation", op).
		Build()
}

// sanitizeFileName keeps letters, digits, dot, dash and underscore.
func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "device"
	}
	return b.String()
}
