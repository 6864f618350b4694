package calls

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("not authorized for this appointment")
	ErrNotFound        = errors.New("not found")
	ErrNoActiveCall    = fmt.Errorf("%w: no active call", ErrNotFound)

	ErrActiveCallExists = errors.New("an ongoing call already exists for this appointment")
	ErrCreateInProgress = fmt.Errorf("%w: room creation in progress", ErrActiveCallExists)

	// ErrProvider wraps a *video.ProviderError from room creation.
	ErrProvider = errors.New("video provider failure")
)
