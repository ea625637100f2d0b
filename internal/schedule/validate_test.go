package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 9, 12, 30, 0, 0, time.UTC)

func validDraft() Draft {
	return Draft{
		Channel:       ChannelEmail,
		Recipient:     "a@b.com",
		Subject:       "Hi",
		Body:          "hi",
		ScheduledDate: "2026-03-10",
		ScheduledTime: "10:00",
		OwnerID:       "u1",
	}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Kind
}

func TestValidateAndBuildCreates(t *testing.T) {
	restore := newID
	newID = func() string { return "generated" }
	t.Cleanup(func() { newID = restore })

	msg, err := ValidateAndBuild(validDraft(), testNow, nil)
	require.NoError(t, err)

	assert.Equal(t, "generated", msg.ID)
	assert.Equal(t, "u1", msg.OwnerID)
	assert.Equal(t, ChannelEmail, msg.Channel)
	assert.Equal(t, "a@b.com", msg.Recipient)
	assert.Equal(t, "Hi", msg.Subject)
	assert.Equal(t, "hi", msg.Body)
	assert.True(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC).Equal(msg.ScheduledFor))
	assert.Equal(t, StatusPending, msg.Status)
	assert.Equal(t, testNow, msg.CreatedAt)
	assert.Nil(t, msg.SentAt)
}

func TestValidateAndBuildFreshIDs(t *testing.T) {
	a, err := ValidateAndBuild(validDraft(), testNow, nil)
	require.NoError(t, err)
	b, err := ValidateAndBuild(validDraft(), testNow, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestValidateAndBuildRejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Draft)
		kind  ErrorKind
		field string
	}{
		{name: "missing recipient", edit: func(d *Draft) { d.Recipient = "" }, kind: MissingField, field: "recipient"},
		{name: "blank recipient", edit: func(d *Draft) { d.Recipient = "   " }, kind: MissingField, field: "recipient"},
		{name: "blank body", edit: func(d *Draft) { d.Body = "\n\t" }, kind: MissingField, field: "body"},
		{name: "missing date", edit: func(d *Draft) { d.ScheduledDate = "" }, kind: MissingField, field: "scheduledDate"},
		{name: "missing time", edit: func(d *Draft) { d.ScheduledTime = "" }, kind: MissingField, field: "scheduledTime"},
		{name: "malformed date", edit: func(d *Draft) { d.ScheduledDate = "10/03/2026" }, kind: MissingField, field: "scheduledDate"},
		{name: "malformed time", edit: func(d *Draft) { d.ScheduledTime = "25:99" }, kind: MissingField, field: "scheduledTime"},
		{name: "unknown channel", edit: func(d *Draft) { d.Channel = "fax" }, kind: MissingField, field: "channel"},
		{name: "missing owner", edit: func(d *Draft) { d.OwnerID = "" }, kind: MissingField, field: "ownerId"},
		{name: "email without subject", edit: func(d *Draft) { d.Subject = "" }, kind: MissingSubjectForEmail},
		{name: "email with blank subject", edit: func(d *Draft) { d.Subject = "  " }, kind: MissingSubjectForEmail},
		{name: "earlier today", edit: func(d *Draft) { d.ScheduledDate = "2026-03-09"; d.ScheduledTime = "09:00" }, kind: PastSchedule},
		{name: "exactly now", edit: func(d *Draft) { d.ScheduledDate = "2026-03-09"; d.ScheduledTime = "12:30" }, kind: PastSchedule},
		{
			name: "past schedule wins over content errors",
			edit: func(d *Draft) {
				d.ScheduledDate = "2026-03-01"
				d.Recipient = ""
				d.Subject = ""
			},
			kind: PastSchedule,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.edit(&d)
			msg, err := ValidateAndBuild(d, testNow, nil)
			require.Error(t, err)
			assert.Equal(t, Message{}, msg)
			assert.Equal(t, tc.kind, kindOf(t, err))
			if tc.field != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tc.field, verr.Field)
			}
		})
	}
}

func TestValidateAndBuildChatIgnoresSubject(t *testing.T) {
	d := validDraft()
	d.Channel = ChannelChat
	d.Recipient = "+1234567890"
	d.Subject = "ignored"

	msg, err := ValidateAndBuild(d, testNow, nil)
	require.NoError(t, err)
	assert.Equal(t, ChannelChat, msg.Channel)
	assert.Empty(t, msg.Subject)

	d.Subject = ""
	_, err = ValidateAndBuild(d, testNow, nil)
	require.NoError(t, err)
}

func TestValidateAndBuildUsesClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 9, 11, 0, 0, 0, loc)
	d := validDraft()
	d.ScheduledDate = "2026-03-09"
	d.ScheduledTime = "11:30"

	msg, err := ValidateAndBuild(d, now, nil)
	require.NoError(t, err)
	assert.True(t, msg.ScheduledFor.Equal(time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)))
}

func TestValidateAndBuildEdit(t *testing.T) {
	sentAt := testNow.Add(-time.Hour)
	created := testNow.Add(-48 * time.Hour)
	existing := Message{
		ID:           "m-1",
		OwnerID:      "u1",
		Channel:      ChannelChat,
		Recipient:    "+100",
		Body:         "old",
		ScheduledFor: testNow.Add(-2 * time.Hour),
		Status:       StatusSent,
		CreatedAt:    created,
		SentAt:       &sentAt,
	}

	d := validDraft()
	d.OwnerID = "someone-else"
	msg, err := ValidateAndBuild(d, testNow, &existing)
	require.NoError(t, err)

	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, created, msg.CreatedAt)
	assert.Equal(t, "u1", msg.OwnerID)
	assert.Equal(t, StatusPending, msg.Status)
	assert.Nil(t, msg.SentAt)
	assert.Equal(t, ChannelEmail, msg.Channel)
	assert.Equal(t, "Hi", msg.Subject)

	// the existing message is untouched
	assert.Equal(t, StatusSent, existing.Status)
	assert.Equal(t, "old", existing.Body)
}

func TestValidateAndBuildEditRejectsPast(t *testing.T) {
	existing := Message{ID: "m-1", OwnerID: "u1", Status: StatusPending, CreatedAt: testNow}
	d := validDraft()
	d.ScheduledDate = "2026-01-01"

	_, err := ValidateAndBuild(d, testNow, &existing)
	assert.Equal(t, PastSchedule, kindOf(t, err))
}

func TestEndToEndEmailDraft(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	d := Draft{
		Channel:       ChannelEmail,
		Recipient:     "a@b.com",
		Subject:       "",
		Body:          "hi",
		ScheduledDate: now.AddDate(0, 0, 1).Format(DateLayout),
		ScheduledTime: "10:00",
		OwnerID:       "u1",
	}

	_, err := ValidateAndBuild(d, now, nil)
	assert.Equal(t, MissingSubjectForEmail, kindOf(t, err))

	d.Subject = "Hi"
	msg, err := ValidateAndBuild(d, now, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, msg.Status)
}

func TestValidationErrorMessages(t *testing.T) {
	assert.Equal(t, "recipient is required", missing("recipient").Error())
	assert.Equal(t, "subject is required for email messages", (&ValidationError{Kind: MissingSubjectForEmail}).Error())
	assert.Equal(t, "past_schedule", PastSchedule.String())

	cause := errors.New("bad layout")
	err := &ValidationError{Kind: MissingField, Field: "scheduledTime", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "scheduledTime is invalid")
}
