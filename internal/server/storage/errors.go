package storage

import "errors"

var (
	// ErrInstanceNotFound is returned when no live instance record
	// matches the requested ID.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrSlugInUse is returned when creating an instance whose slug
	// collides with another live instance.
	ErrSlugInUse = errors.New("slug already in use")

	// ErrNoCommands is returned by PopCommand when the queue holds no
	// live, unacknowledged commands.
	ErrNoCommands = errors.New("no commands on the queue")

	// ErrCommandNotFound is returned when no live command matches the
	// requested ID.
	ErrCommandNotFound = errors.New("sync command not found")
)
