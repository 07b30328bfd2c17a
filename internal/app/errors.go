package service

import "errors"

var (
	ErrNotStarted  = errors.New("service not started")
	ErrQueueFull   = errors.New("scan queue is full")
	ErrJobNotFound = errors.New("scan not found")
	ErrJobFinished = errors.New("scan already finished")
)
