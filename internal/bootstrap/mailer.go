package bootstrap

import (
	"log"

	"github.com/hackgods/booking-lifecycle/internal/config"
	"github.com/hackgods/booking-lifecycle/internal/notify"
)

// NewMailer sends through Resend when an API key is configured and only logs
// otherwise.
func NewMailer(cfg config.Config) notify.Mailer {
	if cfg.ResendAPIKey == "" {
		log.Println("RESEND_API_KEY not set, emails will only be logged")
		return notify.LogMailer{}
	}
	return notify.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
}
