package errorx

import (
	"errors"
	"fmt"
)

type Error struct {
	Code    Code
	Message string
}

func New(code Code, msg string, a ...any) Error {
	return Error{Code: code, Message: fmt.Sprintf(msg, a...)}
}

func (e Error) Error() string {
	return e.Message
}

// Is matches any errorx.Error carrying the same code.
func (e Error) Is(target error) bool {
	var t Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code
}

// CodeOf returns the code carried by err, or the code of Unknown.
func CodeOf(err error) Code {
	var errx Error
	if errors.As(err, &errx) {
		return errx.Code
	}

	return Unknown.Code
}
