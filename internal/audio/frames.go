package audio

import "encoding/binary"

const bytesPerSample = 2

// frameAssembler cuts a stream of little-endian 16-bit samples into frames
// of a fixed length. It is used from the device callback only.
type frameAssembler struct {
	frameLength int
	buf         []int16
	carry       []byte
}

func newFrameAssembler(frameLength int) *frameAssembler {
	return &frameAssembler{
		frameLength: frameLength,
		buf:         make([]int16, 0, frameLength*2),
	}
}

// push appends raw samples and calls emit for every complete frame. Each
// emitted frame is a fresh slice.
func (a *frameAssembler) push(raw []byte, emit func([]int16)) {
	if len(a.carry) > 0 {
		raw = append(a.carry, raw...)
		a.carry = nil
	}

	n := len(raw) / bytesPerSample
	for i := range n {
		a.buf = append(a.buf, int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:])))
	}
	if rem := len(raw) % bytesPerSample; rem != 0 {
		a.carry = append([]byte(nil), raw[len(raw)-rem:]...)
	}

	for len(a.buf) >= a.frameLength {
		frame := make([]int16, a.frameLength)
		copy(frame, a.buf[:a.frameLength])
		emit(frame)
		a.buf = append(a.buf[:0], a.buf[a.frameLength:]...)
	}
}
