package service

import "errors"

var (
	ErrEmptyTitle           = errors.New("task title is empty")
	ErrUnknownPriority      = errors.New("unknown priority")
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrTaskNotCompleted     = errors.New("task is not completed")
)
