package frame

import "errors"

var (
	ErrWrongGroup     = errors.New("frame: group_id mismatch")
	ErrWrongDest      = errors.New("frame: dest_id mismatch")
	ErrWrongLength    = errors.New("frame: length mismatch for message type")
	ErrUnknownType    = errors.New("frame: unknown message type")
	ErrUnexpectedType = errors.New("frame: message type not accepted in current state")
)
