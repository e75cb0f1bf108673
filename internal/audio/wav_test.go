package audio

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakefire/wakefire/internal/errors"
)

func TestWAVSinkWritesAllFrames(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "debug")
	sink := NewWAVSink(dir)
	sink.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	const frameLength = 512
	frames := make([][]int16, 3)
	for i := range frames {
		frames[i] = make([]int16, frameLength)
		for j := range frames[i] {
			frames[i][j] = int16(i*1000 + j)
		}
	}

	path, err := sink.Write("USB Mic", 16000, frames)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "USB_Mic_20240501-123000.000.wav"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(16000), dec.SampleRate)
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, uint16(1), dec.NumChans)
	require.Len(t, buf.Data, 3*frameLength)
	assert.Equal(t, 0, buf.Data[0])
	assert.Equal(t, 2000+frameLength-1, buf.Data[len(buf.Data)-1])
}

func TestWAVSinkReportsDebugWriteError(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	blocker := filepath.Join(base, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := NewWAVSink(blocker).Write("mic", 16000, [][]int16{{1, 2}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDebugWrite)
}

func TestWAVSinkRemovesPartialFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewWAVSink(dir)
	sink.encode = func(w io.WriteSeeker, _ int, _ [][]int16) error {
		if _, err := w.Write([]byte("RIFF")); err != nil {
			return err
		}
		return errors.NewStd("disk full")
	}

	path, err := sink.Write("mic", 16000, [][]int16{{1, 2}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDebugWrite)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file removed")
}
