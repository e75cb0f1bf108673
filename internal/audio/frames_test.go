package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples ...int16) []byte {
	b := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*bytesPerSample:], uint16(s))
	}
	return b
}

func TestFrameAssemblerSplitsFrames(t *testing.T) {
	t.Parallel()

	a := newFrameAssembler(4)
	var frames [][]int16
	emit := func(f []int16) { frames = append(frames, f) }

	a.push(pcmBytes(1, 2, 3), emit)
	assert.Empty(t, frames)

	a.push(pcmBytes(4, 5, 6, 7, 8, -9), emit)
	require.Len(t, frames, 2)
	assert.Equal(t, []int16{1, 2, 3, 4}, frames[0])
	assert.Equal(t, []int16{5, 6, 7, 8}, frames[1])

	frames[0][0] = 100
	a.push(pcmBytes(10, 11, 12), emit)
	require.Len(t, frames, 3)
	assert.Equal(t, []int16{-9, 10, 11, 12}, frames[2])
}

func TestFrameAssemblerOddByteCarry(t *testing.T) {
	t.Parallel()

	a := newFrameAssembler(2)
	var frames [][]int16
	emit := func(f []int16) { frames = append(frames, f) }

	raw := pcmBytes(-1, 300)
	a.push(raw[:3], emit)
	assert.Empty(t, frames)
	a.push(raw[3:], emit)

	require.Len(t, frames, 1)
	assert.Equal(t, []int16{-1, 300}, frames[0])
}
