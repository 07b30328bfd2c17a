package worker

import "errors"

var (
	ErrShutdownTimeout = errors.New("worker shutdown timed out")
	ErrPanic           = errors.New("scan job panicked")
)
