package handlers

import (
	"errors"
	"net/http"

	"github.com/42cats/crime-cat-sub002/internal/domain/availability"
	"github.com/42cats/crime-cat-sub002/internal/domain/meeting"
)

// errorStatus maps domain sentinel errors to HTTP status codes. Anything
// unmapped is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, availability.ErrInvalidRange),
		errors.Is(err, availability.ErrInvalidFeedURL),
		errors.Is(err, availability.ErrInvalidColorSlot),
		errors.Is(err, meeting.ErrInvalidRequest),
		errors.Is(err, meeting.ErrInvalidParticipant):
		return http.StatusBadRequest
	case errors.Is(err, availability.ErrSubscriptionOwner):
		return http.StatusForbidden
	case errors.Is(err, availability.ErrSubscriptionGone),
		errors.Is(err, meeting.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.Is(err, availability.ErrBitmapConflict),
		errors.Is(err, meeting.ErrSelectionConflict),
		errors.Is(err, meeting.ErrSlotEventMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
