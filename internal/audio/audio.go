// Package audio provides capture devices and the debug audio sink used by
// detection sources.
package audio

import "context"

// Recorder delivers fixed-length frames of 16-bit mono PCM from one device.
type Recorder interface {
	Start() error
	// Read blocks until a full frame is available, the device is lost or
	// ctx is done.
	Read(ctx context.Context) ([]int16, error)
	Stop() error
	Release() error
}

// RecorderFactory opens a recorder on the device at the given index of the
// current capture device list.
type RecorderFactory interface {
	NewRecorder(index, frameLength, sampleRate int) (Recorder, error)
}

// DeviceLister enumerates capture device names. The position of a name in
// the returned slice is the device index.
type DeviceLister interface {
	ListDevices() ([]string, error)
}

// DebugSink persists the frames captured by one source.
type DebugSink interface {
	Write(deviceName string, sampleRate int, frames [][]int16) (string, error)
}
