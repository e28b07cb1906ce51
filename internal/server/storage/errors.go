package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this login or email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrSessionNotFound indicates that session was not found
	ErrSessionNotFound = errors.New("session not found")

	// ErrTaskNotFound indicates that task was not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskAlreadyExists indicates that the user already has a task with this title
	ErrTaskAlreadyExists = errors.New("task already exists")

	// ErrTaskTypeNotFound indicates that task type is not in the catalog
	ErrTaskTypeNotFound = errors.New("task type not found")

	// ErrTaskTypeAlreadyExists indicates that task type is already in the catalog
	ErrTaskTypeAlreadyExists = errors.New("task type already exists")

	// ErrQuestNotFound indicates that quest was not found
	ErrQuestNotFound = errors.New("quest not found")

	// ErrQuestAlreadyExists indicates that the user already has a quest with this title
	ErrQuestAlreadyExists = errors.New("quest already exists")

	// ErrRoleNotFound indicates that role was not found
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleAlreadyExists indicates that role is already in the catalog
	ErrRoleAlreadyExists = errors.New("role already exists")

	// ErrRoleAlreadyAssigned indicates that user already has the role
	ErrRoleAlreadyAssigned = errors.New("role already assigned")
)
