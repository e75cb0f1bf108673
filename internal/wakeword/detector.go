// Package wakeword wraps the wake phrase engine behind a small Detector
// interface so capture code can be exercised without the native library.
package wakeword

// Detector consumes fixed-length frames of 16-bit mono PCM.
type Detector interface {
	// FrameLength is the number of samples Process expects per call.
	FrameLength() int
	SampleRate() int
	// Process returns the index of the detected keyword or a negative value.
	Process(frame []int16) (int, error)
	Release() error
}

// Factory creates a new, independent Detector. Each detection source owns
// one.
type Factory func() (Detector, error)
