package dashboard

import (
	"github.com/example/message-scheduler/internal/schedule"
)

type draftRequest struct {
	Channel       string `json:"channel"`
	Recipient     string `json:"recipient"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
}

func (r draftRequest) draft(ownerID string) (schedule.Draft, error) {
	channel, err := schedule.ParseChannel(r.Channel)
	if err != nil {
		return schedule.Draft{}, &schedule.ValidationError{Kind: schedule.MissingField, Field: "channel", Err: err}
	}
	return schedule.Draft{
		Channel:       channel,
		Recipient:     r.Recipient,
		Subject:       r.Subject,
		Body:          r.Body,
		ScheduledDate: r.ScheduledDate,
		ScheduledTime: r.ScheduledTime,
		OwnerID:       ownerID,
	}, nil
}

type validationResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

type messagesResponse struct {
	Messages []schedule.Message `json:"messages"`
}

type adminMessage struct {
	schedule.Message
	OwnerName string `json:"owner_name"`
}

type adminMessagesResponse struct {
	Messages []adminMessage `json:"messages"`
}

type adminStatsResponse struct {
	Messages schedule.MessageStats `json:"messages"`
	Users    schedule.UserStats    `json:"users"`
}
