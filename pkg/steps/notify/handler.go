// Package notify implements the notification step handlers. The actual
// delivery (SMTP, SMS gateway, Slack webhook) is an injected capability; the
// handler resolves templating, calls the capability, and reports the result.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

// Channel identifies the notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelSlack Channel = "slack"
)

// Sender delivers one notification. Implementations wrap the real transport.
type Sender interface {
	Send(ctx context.Context, channel Channel, recipients []string, subject, message string) error
}

// Handler sends a notification over one channel.
type Handler struct {
	channel    Channel
	recipients []string
	subject    string
	message    string
	sender     Sender
}

// Execute renders the message against the execution variables and delivers it.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "notify_step", "channel", string(h.channel))

	recipients := make([]string, len(h.recipients))
	for i, r := range h.recipients {
		recipients[i] = template.Render(r, input.Variables)
	}

	subject := template.Render(h.subject, input.Variables)
	message := template.Render(h.message, input.Variables)

	err := h.sender.Send(ctx, h.channel, recipients, subject, message)
	if err != nil {
		return nil, protocol.NewStepError("NOTIFICATION_FAILED", fmt.Sprintf("failed to send %s notification: %v", h.channel, err), true)
	}

	logger.InfoContext(ctx, "Notification sent", "recipients", len(recipients))

	return map[string]any{
		"channel":    string(h.channel),
		"recipients": recipients,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Factory creates notification handlers for one channel.
type Factory struct {
	channel  Channel
	stepType models.StepType
	sender   Sender
}

// NewFactory creates a factory for the given step type and channel.
func NewFactory(stepType models.StepType, channel Channel, sender Sender) *Factory {
	return &Factory{channel: channel, stepType: stepType, sender: sender}
}

// NewEmailFactory creates the EMAIL_NOTIFICATION factory.
func NewEmailFactory(sender Sender) *Factory {
	return NewFactory(models.StepTypeEmailNotification, ChannelEmail, sender)
}

// NewSMSFactory creates the SMS_NOTIFICATION factory.
func NewSMSFactory(sender Sender) *Factory {
	return NewFactory(models.StepTypeSMSNotification, ChannelSMS, sender)
}

// NewSlackFactory creates the SLACK_NOTIFICATION factory.
func NewSlackFactory(sender Sender) *Factory {
	return NewFactory(models.StepTypeSlackNotification, ChannelSlack, sender)
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return f.stepType
}

// ConfigSchema returns the config schema for notification steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"recipients": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"subject": {"type": "string"},
			"message": {"type": "string"}
		},
		"required": ["recipients", "message"]
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	recipients, err := stringSlice(config["recipients"])
	if err != nil {
		return nil, fmt.Errorf("invalid 'recipients' in configuration: %w", err)
	}

	message, _ := config["message"].(string)
	subject, _ := config["subject"].(string)

	return &Handler{
		channel:    f.channel,
		recipients: recipients,
		subject:    subject,
		message:    message,
		sender:     f.sender,
	}, nil
}

func stringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}
