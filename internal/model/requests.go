package model

import "time"

// Event state actions carried by update payloads.
const (
	ActionPublishEvent = "PUBLISH_EVENT"
	ActionRejectEvent  = "REJECT_EVENT"
	ActionSendToReview = "SEND_TO_REVIEW"
	ActionCancelReview = "CANCEL_REVIEW"
)

// NewEventRequest is the payload for creating a new event.
type NewEventRequest struct {
	Category          string    `json:"category" validate:"required"`
	Title             string    `json:"title" validate:"required,min=3,max=120"`
	Annotation        string    `json:"annotation" validate:"required,min=20,max=2000"`
	Description       string    `json:"description" validate:"required,min=20,max=7000"`
	EventDate         time.Time `json:"eventDate" validate:"required"`
	Location          Location  `json:"location"`
	Paid              bool      `json:"paid"`
	RequestModeration *bool     `json:"requestModeration"`
	ParticipantLimit  int       `json:"participantLimit" validate:"gte=0"`
}

// UpdateEventRequest is a partial update of an event. Nil fields are left
// unchanged. StateAction is validated by the caller since initiators and
// admins accept different actions.
type UpdateEventRequest struct {
	Category          *string    `json:"category,omitempty"`
	Title             *string    `json:"title,omitempty" validate:"omitempty,min=3,max=120"`
	Annotation        *string    `json:"annotation,omitempty" validate:"omitempty,min=20,max=2000"`
	Description       *string    `json:"description,omitempty" validate:"omitempty,min=20,max=7000"`
	EventDate         *time.Time `json:"eventDate,omitempty"`
	Location          *Location  `json:"location,omitempty"`
	Paid              *bool      `json:"paid,omitempty"`
	RequestModeration *bool      `json:"requestModeration,omitempty"`
	ParticipantLimit  *int       `json:"participantLimit,omitempty" validate:"omitempty,gte=0"`
	StateAction       string     `json:"stateAction,omitempty"`
}

// StatusUpdateRequest is the payload of a bulk request status update.
type StatusUpdateRequest struct {
	RequestIDs []string      `json:"requestIds" validate:"required,min=1,dive,required"`
	Status     RequestStatus `json:"status" validate:"required,oneof=CONFIRMED REJECTED"`
}

// NewUserRequest is the payload for registering a user.
type NewUserRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=250"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// NewCategoryRequest is the payload for creating a category.
type NewCategoryRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}
