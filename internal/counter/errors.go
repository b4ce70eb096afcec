package counter

import "errors"

var (
	// ErrSyntax marks a malformed command argument. Nothing is stored when it is returned.
	ErrSyntax = errors.New("syntax error")

	// ErrWrongType is returned when the key holds a value of another type.
	ErrWrongType = errors.New("key holds a value of another type")

	// ErrEncodingVersion is returned when a persisted record has an unsupported encoding version.
	ErrEncodingVersion = errors.New("unsupported encoding version")

	// ErrCorrupt is returned when persisted bytes cannot describe a valid record.
	ErrCorrupt = errors.New("corrupt counter record")

	// ErrUnknownCommand is returned by Controller.Exec for a command name it does not handle.
	ErrUnknownCommand = errors.New("unknown command")
)
