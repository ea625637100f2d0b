package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Draft is unvalidated input for a new or edited message. ScheduledDate and
// ScheduledTime use DateLayout and TimeLayout and are read in the location
// of the clock passed to ValidateAndBuild.
type Draft struct {
	Channel       Channel
	Recipient     string
	Subject       string
	Body          string
	ScheduledDate string
	ScheduledTime string
	OwnerID       string
}

type ErrorKind int

const (
	MissingField ErrorKind = iota + 1
	MissingSubjectForEmail
	PastSchedule
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case MissingSubjectForEmail:
		return "missing_subject_for_email"
	case PastSchedule:
		return "past_schedule"
	default:
		return "unknown"
	}
}

// ValidationError reports why a draft was rejected. Field is set for
// MissingField and names the offending draft field. Err holds the parse
// error when a field was present but malformed.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		if e.Err != nil {
			return fmt.Sprintf("%s is invalid: %v", e.Field, e.Err)
		}
		return e.Field + " is required"
	case MissingSubjectForEmail:
		return "subject is required for email messages"
	case PastSchedule:
		return "message must be scheduled for a future date and time"
	default:
		return "invalid message"
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

func missing(field string) *ValidationError {
	return &ValidationError{Kind: MissingField, Field: field}
}

var newID = uuid.NewString

// ValidateAndBuild checks d against the clock reading now and returns the
// message it describes. When existing is non-nil the result replaces it:
// ID, OwnerID and CreatedAt are kept, every other field comes from the
// draft and the status goes back to pending.
func ValidateAndBuild(d Draft, now time.Time, existing *Message) (Message, error) {
	owner := strings.TrimSpace(d.OwnerID)
	if existing != nil {
		owner = existing.OwnerID
	}
	if owner == "" {
		return Message{}, missing("ownerId")
	}
	if !d.Channel.Valid() {
		return Message{}, missing("channel")
	}

	scheduledFor, err := scheduledAt(d, now.Location())
	if err != nil {
		return Message{}, err
	}
	// A schedule in the past is reported before any other content problem.
	if !scheduledFor.After(now) {
		return Message{}, &ValidationError{Kind: PastSchedule}
	}

	recipient := strings.TrimSpace(d.Recipient)
	if recipient == "" {
		return Message{}, missing("recipient")
	}
	if strings.TrimSpace(d.Body) == "" {
		return Message{}, missing("body")
	}

	var subject string
	if d.Channel == ChannelEmail {
		subject = strings.TrimSpace(d.Subject)
		if subject == "" {
			return Message{}, &ValidationError{Kind: MissingSubjectForEmail}
		}
	}

	msg := Message{
		OwnerID:      owner,
		Channel:      d.Channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         d.Body,
		ScheduledFor: scheduledFor,
		Status:       StatusPending,
	}
	if existing != nil {
		msg.ID = existing.ID
		msg.CreatedAt = existing.CreatedAt
	} else {
		msg.ID = newID()
		msg.CreatedAt = now
	}
	return msg, nil
}

func scheduledAt(d Draft, loc *time.Location) (time.Time, error) {
	date := strings.TrimSpace(d.ScheduledDate)
	if date == "" {
		return time.Time{}, missing("scheduledDate")
	}
	clock := strings.TrimSpace(d.ScheduledTime)
	if clock == "" {
		return time.Time{}, missing("scheduledTime")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return time.Time{}, &ValidationError{Kind: MissingField, Field: "scheduledDate", Err: err}
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return time.Time{}, &ValidationError{Kind: MissingField, Field: "scheduledTime", Err: err}
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Kind: MissingField, Field: "scheduledDate", Err: err}
	}
	return t, nil
}
