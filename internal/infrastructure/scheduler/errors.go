package scheduler

import "errors"

var (
	// ErrInvalidConfig indicates the scheduler configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
	// ErrSchedulerNotRunning indicates an operation requires a started scheduler
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
)
