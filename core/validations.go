package core

import (
	"errors"
	"strings"
	"time"
)

func ValidateEvent(event Event, now time.Time) error {
	event.Name = strings.TrimSpace(event.Name)
	if len(event.Name) == 0 {
		return errors.New("name is required")
	}

	if len(event.Name) > 100 {
		return errors.New("name is too long (100 characters tops)")
	}

	if event.StartsAt.IsZero() {
		return errors.New("start time is required")
	}

	if !event.StartsAt.After(now) {
		return errors.New("start time must be in the future")
	}

	return nil
}
