// Package model defines the core domain types for the event participation system.
package model

import "time"

// EventState is the lifecycle state of an event.
type EventState string

const (
	EventPending   EventState = "PENDING"
	EventPublished EventState = "PUBLISHED"
	EventCanceled  EventState = "CANCELED"
)

// RequestStatus is the status of a participation request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestConfirmed RequestStatus = "CONFIRMED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCanceled  RequestStatus = "CANCELED"
)

// CanTransition reports whether a request may move from s to next.
// REJECTED and CANCELED are terminal.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case RequestPending:
		return next == RequestConfirmed || next == RequestRejected || next == RequestCanceled
	case RequestConfirmed:
		return next == RequestCanceled
	default:
		return false
	}
}

// User is a registered user. Users are organizers and requesters at once.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Category groups events.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Location is the place an event happens at.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event represents a joinable event created by an organizer.
type Event struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Annotation        string     `json:"annotation"`
	Description       string     `json:"description"`
	CategoryID        string     `json:"category"`
	InitiatorID       string     `json:"initiator"`
	Location          Location   `json:"location"`
	Paid              bool       `json:"paid"`
	State             EventState `json:"state"`
	ParticipantLimit  int        `json:"participantLimit"`
	RequestModeration bool       `json:"requestModeration"`
	ConfirmedCount    int        `json:"confirmedRequests"`
	CreatedOn         time.Time  `json:"createdOn"`
	PublishedOn       *time.Time `json:"publishedOn,omitempty"`
	EventDate         time.Time  `json:"eventDate"`
}

// Unlimited reports whether the event accepts any number of participants.
func (e *Event) Unlimited() bool {
	return e.ParticipantLimit == 0
}

// IsFull returns true when a positive limit has been reached.
func (e *Event) IsFull() bool {
	return !e.Unlimited() && e.ConfirmedCount >= e.ParticipantLimit
}

// AutoConfirms reports whether new requests skip moderation.
func (e *Event) AutoConfirms() bool {
	return e.Unlimited() || !e.RequestModeration
}

// EventView is an event enriched with its view counter from the stats service.
type EventView struct {
	Event
	Views int64 `json:"views"`
}

// ParticipationRequest is a user's request to join an event.
type ParticipationRequest struct {
	ID          string        `json:"id"`
	EventID     string        `json:"event"`
	RequesterID string        `json:"requester"`
	Status      RequestStatus `json:"status"`
	Created     time.Time     `json:"created"`
}

// StatusUpdateResult lists the requests changed by a bulk status update.
type StatusUpdateResult struct {
	Confirmed []ParticipationRequest `json:"confirmedRequests"`
	Rejected  []ParticipationRequest `json:"rejectedRequests"`
}

// CountMismatch is an event whose stored confirmed counter disagrees with
// the number of CONFIRMED requests in the ledger.
type CountMismatch struct {
	EventID     string `json:"eventId"`
	Stored      int    `json:"stored"`
	LedgerCount int    `json:"ledgerCount"`
}
