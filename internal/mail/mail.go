// Package mail sends account lifecycle email: verification links and
// password reset links.
package mail

import (
	"log"
	"net/mail"
)

// Message is one outbound email.
type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// Service is any sender of account email. Sends are fire-and-forget from the
// caller's point of view; delivery failures are logged, never surfaced to the
// requesting user.
type Service interface {
	Send(messages ...*Message)
}

// Console logs messages instead of delivering them. The default when no
// sendgrid key is configured, and what tests inject.
type Console struct{}

func (Console) Send(messages ...*Message) {
	for _, m := range messages {
		log.Printf("Email (console): to=%s subject=%q\n%s", m.To.Address, m.Subject, m.Text)
	}
}
