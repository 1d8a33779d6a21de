package models

import "errors"

// Common errors for pipeline store operations.
var (
	// Video errors
	ErrVideoNotFound  = errors.New("video not found")
	ErrDuplicateVideo = errors.New("video with this info hash already exists")

	// Task errors
	ErrTaskNotFound  = errors.New("task not found")
	ErrDuplicateTask = errors.New("task already exists")
	ErrStateConflict = errors.New("task state changed concurrently")

	// Account errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrNoActiveAccounts = errors.New("no active accounts available for scheduling")

	// Storage instance errors
	ErrStorageInstanceNotFound  = errors.New("storage instance not found")
	ErrDuplicateStorageInstance = errors.New("storage instance already exists")
)
