package utils

import (
	"errors"
	"fmt"
)

// Operations reported by AppError.
const (
	OpCollectHost  = "collector.host"
	OpCollectHTTP  = "collector.http"
	OpCollectRedis = "collector.redis"
)

// AppError records which pipeline stage failed, a short description and the
// underlying cause.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches a target AppError on Op, and on Msg when the target sets one.
// errors.Is(err, &AppError{Op: OpCollectHTTP}) reports any agent failure.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Op != e.Op {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// OpOf returns the operation of the outermost AppError in err's chain, or
// "unknown" when there is none.
func OpOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Op
	}
	return "unknown"
}
