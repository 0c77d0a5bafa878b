package model

import "errors"

// Sentinels returned by repositories. Handlers translate them into the
// response envelope; services wrap them with context.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenNotFound = errors.New("token not found")
	ErrCaseNotFound  = errors.New("case not found")
	ErrImageNotFound = errors.New("image not found")

	// ErrOrderConflict means a reorder did not name exactly the stored
	// case ids.
	ErrOrderConflict = errors.New("order conflict")
)
