package mail

import (
	"log"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Sendgrid delivers messages through the sendgrid v3 API. Messages are sent
// on their own goroutines so a slow provider never holds up request handling.
type Sendgrid struct {
	key  string
	from *sgmail.Email
}

var _ Service = (*Sendgrid)(nil)

func NewSendgrid(key, fromName, fromAddress string) *Sendgrid {
	return &Sendgrid{
		key:  key,
		from: sgmail.NewEmail(fromName, fromAddress),
	}
}

func (s *Sendgrid) Send(messages ...*Message) {
	for _, m := range messages {
		m := m
		go s.send(m)
	}
}

func (s *Sendgrid) send(m *Message) {
	p := sgmail.NewPersonalization()
	p.Subject = m.Subject
	p.AddTos(sgmail.NewEmail(m.To.Name, m.To.Address))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(s.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", m.Text))
	if m.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", m.HTML))
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(v3)

	res, err := sendgrid.API(req)
	if err != nil {
		log.Printf("Failed to send email to %s: %v", m.To.Address, err)
	} else if res.StatusCode >= http.StatusBadRequest {
		log.Printf("Sendgrid rejected email to %s: status=%d body=%s", m.To.Address, res.StatusCode, res.Body)
	}
}
