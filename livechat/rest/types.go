package rest

import (
	"fmt"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	Name         string            `json:"name"`
	Type         livechat.RoomType `json:"type,omitempty"` // defaults to "public" if not specified
	Participants []string          `json:"participants,omitempty"`
}

// UpdateRoomRequest is the request body for renaming a room.
type UpdateRoomRequest struct {
	Name string `json:"name"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Temporary reports whether the request may succeed if retried.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == 429
}
