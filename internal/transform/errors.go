package transform

import (
	"errors"
	"fmt"
)

// ErrFormat matches every error caused by a workbook that does not follow the expected layout.
var ErrFormat = errors.New("unexpected spreadsheet format")

// FormatError reports where in the workbook the input deviated from the layout.
type FormatError struct {
	Sheet  string
	Cell   string // empty when the problem is not tied to one cell
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.Sheet != "" && e.Cell != "":
		return fmt.Sprintf("format error in sheet %q at %s: %s", e.Sheet, e.Cell, msg)
	case e.Sheet != "":
		return fmt.Sprintf("format error in sheet %q: %s", e.Sheet, msg)
	default:
		return fmt.Sprintf("format error: %s", msg)
	}
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is makes every FormatError match ErrFormat
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func formatErrorf(sheet, cell string, err error, format string, args ...any) *FormatError {
	return &FormatError{
		Sheet:  sheet,
		Cell:   cell,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
