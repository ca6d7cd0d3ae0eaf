package model

import "errors"

var (
	// ErrRoleNotFound is returned when a configured role name does not exist in the guild.
	ErrRoleNotFound = errors.New("role not found")
)
