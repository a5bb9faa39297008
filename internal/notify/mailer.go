package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer is the email transport.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (r *ResendMailer) Send(ctx context.Context, m Message) error {
	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{m.To},
		Subject: m.Subject,
		Html:    m.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend send to %s: %w", m.To, err)
	}
	log.Printf("email sent id=%s to=%s subject=%q", sent.Id, m.To, m.Subject)
	return nil
}

// LogMailer only logs messages. Used when no API key is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Message) error {
	log.Printf("email (not sent) to=%s subject=%q", m.To, m.Subject)
	return nil
}
