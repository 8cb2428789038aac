package service

import "errors"

var (
	// ErrDayLogClosed is returned on attempts to mutate a closed day log.
	ErrDayLogClosed = errors.New("day log is closed")

	// ErrSystemContext is returned on attempts to rename or delete the
	// system Inbox context.
	ErrSystemContext = errors.New("system context cannot be modified")

	// ErrInvalidDestination is returned when a migration names an unknown
	// destination.
	ErrInvalidDestination = errors.New("invalid migration destination")

	// ErrTitleRequired is returned when a task or template is created
	// without a title or name.
	ErrTitleRequired = errors.New("title is required")

	// ErrSearchQueryRequired is returned when a search is attempted with
	// an empty query.
	ErrSearchQueryRequired = errors.New("search query is required")
)
