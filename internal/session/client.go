package session

import (
	"errors"
	"strings"
)

// ErrInvalidReminder is returned for reminder lead times outside ReminderOptions.
var ErrInvalidReminder = errors.New("session: unsupported reminder")

// ReminderOptions are the lead times, in minutes, a client may pick. Zero
// means no reminder.
var ReminderOptions = []int{0, 15, 30, 60, 120, 360, 1440}

// ValidReminder reports whether minutes is one of ReminderOptions.
func ValidReminder(minutes int) bool {
	for _, opt := range ReminderOptions {
		if opt == minutes {
			return true
		}
	}
	return false
}

// Client holds the contact details typed into the last step of the widget.
// Values are stored as entered.
type Client struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Patronymic string `json:"patronymic"`
	Birthday   string `json:"birthday"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// Complete reports whether the fields required to book are filled in.
func (c Client) Complete() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.Phone) != ""
}

// FullName joins surname, name and patronymic.
func (c Client) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Surname, c.Name, c.Patronymic} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
