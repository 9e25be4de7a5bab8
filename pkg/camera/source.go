package camera

// Frame is one encoded snapshot at the stream's native size.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// Source opens capture streams. Implementations must not leave the device
// open when Open returns an error.
type Source interface {
	Open(cfg Config) (Stream, error)
}

// Stream is a live capture stream.
type Stream interface {
	// ReadFrame encodes the current frame as JPEG. A frame with zero
	// dimensions means the device has not delivered anything yet.
	ReadFrame(quality int) (Frame, error)

	// Close stops the underlying capture.
	Close() error
}
