// Package booking turns a completed widget session into an appointment
// request and hands it to the downstream booking system.
package booking

import (
	"errors"
	"time"

	"github.com/wolfman30/booking-widget/internal/session"
)

var (
	// ErrIncomplete is returned when a session lacks a selection needed to book.
	ErrIncomplete = errors.New("booking: session is not complete")
	// ErrEndsNextDay is returned when the chosen services would run past midnight.
	ErrEndsNextDay = errors.New("booking: appointment would end on the next day")
)

// TimeLayout is the wall-clock format the chat bot expects in Submission.Time.
const TimeLayout = "2006-01-02 15:04"

// Submission is the new-appointment request understood by the chat bot.
type Submission struct {
	UserID             int64  `json:"userId"`
	Time               string `json:"time"`
	InstitutionName    string `json:"institutionName"`
	InstitutionAddress string `json:"institutionAddress"`
	Specialist         string `json:"specialist"`
	Specialisation     string `json:"specialisation"`

	SessionID     string    `json:"sessionId,omitempty"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	ServiceIDs    []string  `json:"serviceIds,omitempty"`
	TotalPrice    string    `json:"totalPrice,omitempty"`
	ClientName    string    `json:"clientName,omitempty"`
	ClientPhone   string    `json:"clientPhone,omitempty"`
	ClientEmail   string    `json:"clientEmail,omitempty"`
	RemindMinutes int       `json:"remindMinutes,omitempty"`
}

// BuildSubmission assembles the request for sess. Wall-clock fields are
// rendered in loc; StartsAt and EndsAt are UTC instants.
func BuildSubmission(sess *session.Session, userID int64, loc *time.Location) (Submission, error) {
	if sess == nil || !sess.IsSubmissible() {
		return Submission{}, ErrIncomplete
	}
	if sess.CrossesMidnight() {
		return Submission{}, ErrEndsNextDay
	}
	if loc == nil {
		loc = time.UTC
	}
	start, _ := sess.StartAt(loc)
	end, _ := sess.EndAt(loc)

	services := sess.Services()
	ids := make([]string, 0, len(services))
	for _, item := range services {
		ids = append(ids, item.ID)
	}
	provider := sess.Provider()
	venue := sess.Venue()
	client := sess.Client()

	return Submission{
		UserID:             userID,
		Time:               start.Format(TimeLayout),
		InstitutionName:    venue.Name,
		InstitutionAddress: venue.Address,
		Specialist:         provider.Name,
		Specialisation:     provider.Category,
		SessionID:          sess.ID(),
		StartsAt:           start.UTC(),
		EndsAt:             end.UTC(),
		ServiceIDs:         ids,
		TotalPrice:         sess.TotalPrice().StringFixed(2),
		ClientName:         client.FullName(),
		ClientPhone:        client.Phone,
		ClientEmail:        client.Email,
		RemindMinutes:      sess.RemindMinutes(),
	}, nil
}
