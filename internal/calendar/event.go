package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for unknown event ids.
	ErrNotFound = errors.New("calendar: event not found")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("calendar: invalid event")
)

// Event is one entry on the public calendar.
type Event struct {
	ID          string     `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7" doc:"Event identifier"`
	Title       string     `json:"title" example:"Sunday Service" doc:"Event title"`
	Description string     `json:"description,omitempty" doc:"Free-form description"`
	Location    string     `json:"location,omitempty" example:"Main hall" doc:"Where the event takes place"`
	StartsAt    time.Time  `json:"startsAt" doc:"Start time"`
	EndsAt      *time.Time `json:"endsAt,omitempty" doc:"Optional end time"`
	Published   bool       `json:"published" doc:"Visible on the public calendar"`
	CreatedAt   time.Time  `json:"createdAt" doc:"Creation time"`
	UpdatedAt   time.Time  `json:"updatedAt" doc:"Last modification time"`
}

// Input holds the editable fields of an Event.
type Input struct {
	Title       string     `json:"title" minLength:"1" maxLength:"200" example:"Sunday Service" doc:"Event title"`
	Description string     `json:"description,omitempty" maxLength:"4000" doc:"Free-form description"`
	Location    string     `json:"location,omitempty" maxLength:"200" doc:"Where the event takes place"`
	StartsAt    time.Time  `json:"startsAt" doc:"Start time"`
	EndsAt      *time.Time `json:"endsAt,omitempty" doc:"Optional end time, after startsAt"`
	Published   bool       `json:"published,omitempty" doc:"Visible on the public calendar"`
}

// Validate trims text fields and checks the time range.
func (in *Input) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)

	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if in.StartsAt.IsZero() {
		return fmt.Errorf("%w: startsAt is required", ErrInvalid)
	}
	if in.EndsAt != nil && !in.EndsAt.After(in.StartsAt) {
		return fmt.Errorf("%w: endsAt must be after startsAt", ErrInvalid)
	}
	return nil
}

func (in Input) apply(ev *Event) {
	ev.Title = in.Title
	ev.Description = in.Description
	ev.Location = in.Location
	ev.StartsAt = in.StartsAt
	ev.EndsAt = in.EndsAt
	ev.Published = in.Published
}
