package codec

// Errors
var (
	// ErrUnsupportedSchema is returned at construction when a record type cannot
	// be described or instantiated, or a field type has no codec.
	ErrUnsupportedSchema = &CodecError{"unsupported schema"}
	// ErrUnknownSchemaReference is returned by Decode for a subclass tag or type
	// name this codec cannot resolve.
	ErrUnknownSchemaReference = &CodecError{"unknown schema reference"}
	// ErrDelegateReconstruction reports a delegate reference that could not be
	// rebuilt from its persisted form. ReadSnapshot recovers from it locally.
	ErrDelegateReconstruction = &CodecError{"delegate reconstruction failed"}
	// ErrCorruptSnapshot is returned when persisted snapshot bytes are invalid.
	ErrCorruptSnapshot = &CodecError{"corrupt snapshot"}
	// ErrValueMismatch is returned by Encode for a value of the wrong Go type.
	ErrValueMismatch = &CodecError{"value does not match codec"}
	// ErrMalformedRecord is returned by Decode for bytes that are not a record.
	ErrMalformedRecord = &CodecError{"malformed record"}
)

// CodecError represents a codec error
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return e.Message
}
