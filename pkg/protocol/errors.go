package protocol

import (
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed record")
var ErrUnknownTag = errors.New("unknown tag")
var ErrMissingField = errors.New("missing required field")
var ErrUnsupportedMessage = errors.New("unsupported message")

// ProtocolError is returned by Decode (and Encode for foreign Message values).
// Receivers log it and drop the record; it never means the connection is broken.
type ProtocolError struct {
	Tag   Tag
	Field string
	Err   error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("protocol: %v %q for %q", e.Err, e.Field, e.Tag)
	case e.Tag != "":
		return fmt.Sprintf("protocol: %v: %q", e.Err, e.Tag)
	default:
		return fmt.Sprintf("protocol: %v", e.Err)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }
