package backend

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Code is a backend failure code. The values and messages follow the
// classic lm-sensors error table so diagnostics read the same.
type Code int

const (
	ErrWildcards Code = iota + 1
	ErrNoEntry
	ErrAccessR
	ErrKernel
	ErrDivZero
	ErrChipName
	ErrBusName
	ErrParse
	ErrAccessW
	ErrIO
	ErrRecursion
)

var codeText = map[Code]string{
	ErrWildcards: "Wildcard found in chip name",
	ErrNoEntry:   "No such subfeature known",
	ErrAccessR:   "Can't read",
	ErrKernel:    "Kernel interface error",
	ErrDivZero:   "Divide by zero",
	ErrChipName:  "Can't parse chip name",
	ErrBusName:   "Can't parse bus name",
	ErrParse:     "General parse error",
	ErrAccessW:   "Can't write",
	ErrIO:        "I/O error",
	ErrRecursion: "Evaluation recurses too deep",
}

func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return "Unknown error"
}

// Error is a failed backend operation.
type Error struct {
	Code Code
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	} else if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Strerror returns the human-readable text for a backend failure: the
// code's message for an *Error, the error text otherwise.
func Strerror(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Code.String()
	}
	return err.Error()
}

// codeFor classifies an errno coming back from sysfs.
func codeFor(err error) Code {
	switch {
	case errors.Is(err, unix.EIO):
		return ErrIO
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return ErrAccessR
	default:
		return ErrKernel
	}
}
