package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Appointment is what a booking confirmation talks about.
type Appointment struct {
	SessionID      string
	ClientName     string
	ClientEmail    string
	Specialist     string
	Specialisation string
	StartsAt       time.Time // local wall-clock time of the venue
	VenueName      string
	VenueAddress   string
	Services       []string
	Total          string
}

const (
	confirmationSubject  = "Запись подтверждена"
	confirmationCategory = "booking_confirmation"
)

const confirmationTemplate = `Вы успешно записаны к %s (%s)
Дата и время записи: %s
Медорганизация: %s
Адрес: %s
`

// ConfirmationText renders the message the chat bot sends after a booking.
func ConfirmationText(a Appointment) string {
	return fmt.Sprintf(confirmationTemplate,
		a.Specialist,
		a.Specialisation,
		a.StartsAt.Format("02.01.2006 в 15:04"),
		a.VenueName,
		a.VenueAddress,
	)
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<p>Вы успешно записаны к <b>{{.Specialist}}</b> ({{.Specialisation}})</p>
<p>Дата и время записи: {{.When}}</p>
{{if .Services}}<ul>{{range .Services}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Total}}<p>Стоимость: {{.Total}}</p>{{end}}
<p>Медорганизация: {{.VenueName}}<br>Адрес: {{.VenueAddress}}</p>
`))

// ConfirmationEmail builds the email sent to the client after a booking.
func ConfirmationEmail(a Appointment) (EmailMessage, error) {
	var html bytes.Buffer
	err := confirmationHTML.Execute(&html, struct {
		Appointment
		When string
	}{a, a.StartsAt.Format("02.01.2006 в 15:04")})
	if err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render confirmation: %w", err)
	}

	body := ConfirmationText(a)
	if len(a.Services) > 0 {
		body += "Услуги: " + strings.Join(a.Services, ", ") + "\n"
	}
	if a.Total != "" {
		body += "Стоимость: " + a.Total + "\n"
	}

	return EmailMessage{
		To:        a.ClientEmail,
		ToName:    a.ClientName,
		Subject:   confirmationSubject,
		Body:      body,
		HTML:      html.String(),
		Category:  confirmationCategory,
		Reference: a.SessionID,
	}, nil
}
