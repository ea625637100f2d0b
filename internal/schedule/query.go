package schedule

import (
	"fmt"
	"strings"
)

// StatusFilter selects messages by status. The zero value and AllStatuses
// match every message.
type StatusFilter string

const AllStatuses StatusFilter = "all"

// ChannelFilter selects messages by channel. The zero value and AllChannels
// match every message.
type ChannelFilter string

const AllChannels ChannelFilter = "all"

func StatusIs(s Status) StatusFilter { return StatusFilter(s) }

func ChannelIs(c Channel) ChannelFilter { return ChannelFilter(c) }

func (f StatusFilter) Match(s Status) bool {
	return f == "" || f == AllStatuses || Status(f) == s
}

func (f ChannelFilter) Match(c Channel) bool {
	return f == "" || f == AllChannels || Channel(f) == c
}

func ParseStatusFilter(s string) (StatusFilter, error) {
	if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, string(AllStatuses)) {
		return AllStatuses, nil
	}
	status, err := ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("status filter: %w", err)
	}
	return StatusIs(status), nil
}

func ParseChannelFilter(s string) (ChannelFilter, error) {
	if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, string(AllChannels)) {
		return AllChannels, nil
	}
	channel, err := ParseChannel(s)
	if err != nil {
		return "", fmt.Errorf("channel filter: %w", err)
	}
	return ChannelIs(channel), nil
}

// FilterMessages returns the messages matching both filters in their
// original order. The input slice is not modified.
func FilterMessages(messages []Message, status StatusFilter, channel ChannelFilter) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if status.Match(m.Status) && channel.Match(m.Channel) {
			out = append(out, m)
		}
	}
	return out
}

type MessageStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Email   int `json:"email"`
	Chat    int `json:"chat"`
}

func ComputeStats(messages []Message) MessageStats {
	stats := MessageStats{Total: len(messages)}
	for _, m := range messages {
		switch m.Status {
		case StatusPending:
			stats.Pending++
		case StatusSent:
			stats.Sent++
		case StatusFailed:
			stats.Failed++
		}
		switch m.Channel {
		case ChannelEmail:
			stats.Email++
		case ChannelChat:
			stats.Chat++
		}
	}
	return stats
}

type UserMessageCount struct {
	User     User `json:"user"`
	Messages int  `json:"messages"`
}

type UserStats struct {
	// TotalUsers counts users without the admin role.
	TotalUsers int                `json:"total_users"`
	PerUser    []UserMessageCount `json:"per_user"`
}

// ComputeUserStats counts messages per user, keeping the order of users.
func ComputeUserStats(users []User, messages []Message) UserStats {
	byOwner := make(map[string]int, len(users))
	for _, m := range messages {
		byOwner[m.OwnerID]++
	}
	stats := UserStats{PerUser: make([]UserMessageCount, 0, len(users))}
	for _, u := range users {
		if u.Role != RoleAdmin {
			stats.TotalUsers++
		}
		stats.PerUser = append(stats.PerUser, UserMessageCount{User: u, Messages: byOwner[u.ID]})
	}
	return stats
}

const UnknownUserName = "Unknown User"

func OwnerName(users []User, ownerID string) string {
	for _, u := range users {
		if u.ID == ownerID {
			return u.Name
		}
	}
	return UnknownUserName
}
