package channels

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
)

// EmailChannel delivers rendered messages through SendGrid
type EmailChannel struct {
	client *sendgrid.Client
	config config.SendGridConfig
	logger *zap.Logger
}

// NewEmailChannel creates a new SendGrid email channel
func NewEmailChannel(cfg config.SendGridConfig, logger *zap.Logger) *EmailChannel {
	client := sendgrid.NewSendClient(cfg.APIKey)
	return &EmailChannel{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// Send delivers one email. Provider responses map onto the retry taxonomy:
// 4xx responses are permanent (a retry resends the same rejected request),
// 5xx responses and transport errors are transient.
func (e *EmailChannel) Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, subject, to, textBody, htmlBody)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return &TransientError{Err: err}
	}

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		e.logger.Debug("Email accepted by provider",
			zap.String("recipient", recipient),
			zap.Int("status", response.StatusCode),
		)
		return nil
	case response.StatusCode >= 500:
		return &TransientError{Err: fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)}
	default:
		return &PermanentError{Err: fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)}
	}
}
