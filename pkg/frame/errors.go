package frame

// Errors
var (
	// ErrCorruptFrame is returned when a frame is truncated or fails its CRC.
	ErrCorruptFrame = &FrameError{"corrupt frame"}
	// ErrUnexpectedKind is returned when a valid frame holds another payload kind.
	ErrUnexpectedKind = &FrameError{"unexpected frame kind"}
)

// FrameError represents a frame error
type FrameError struct {
	Message string
}

func (e *FrameError) Error() string {
	return e.Message
}
