package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/optifolio/src/config"
	"github.com/username/optifolio/src/logger"
)

// EmailService notifies operators about imports that need manual attention.
type EmailService interface {
	SendUnprocessedAlert(toEmail, clientName, exchange string, count int) error
}

// NewEmailService picks the provider from configuration. Anything other
// than a fully configured mailgun setup falls back to the log-only service.
func NewEmailService() EmailService {
	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to LogEmailService.")
			return &LogEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	default:
		return &LogEmailService{}
	}
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendUnprocessedAlert(toEmail, clientName, exchange string, count int) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := fmt.Sprintf("Optifolio: %d unreconciled trades from %s", count, exchange)

	plainTextBody := fmt.Sprintf(`Hi,

The latest %s import for client %q left %d trade(s) without a matching position.
They are parked in the unprocessed queue and need manual reconciliation.

Thanks,
The Optifolio Team`, exchange, clientName, count)

	message := s.mg.NewMessage(from, subject, plainTextBody, toEmail)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send unprocessed alert via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Unprocessed alert sent via Mailgun", "to", toEmail, "id", id)
	return nil
}

// LogEmailService is the default provider: it only records what would have
// been sent. Useful for development and tests.
type LogEmailService struct{}

func (s *LogEmailService) SendUnprocessedAlert(toEmail, clientName, exchange string, count int) error {
	logger.L.Info("EMAIL (log provider): unprocessed alert",
		"to", toEmail, "clientName", clientName, "exchange", exchange, "count", count)
	return nil
}
