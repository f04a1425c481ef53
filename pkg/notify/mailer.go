package notify

import (
	"context"
	"sync"

	cr "github.com/cockroachdb/errors"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendMailer delivers through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}
	if _, err := m.client.Emails.SendWithContext(ctx, req); err != nil {
		return cr.Wrap(err, "resend")
	}
	return nil
}

// LogMailer only logs. It stands in when e-mail delivery is disabled.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("notify: delivery disabled, message dropped",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// RecordingMailer keeps messages in memory and can be told to fail for a
// recipient. Used in tests.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[string]error
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{failFor: make(map[string]error)}
}

// FailFor makes every send to address return err.
func (m *RecordingMailer) FailFor(address string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[address] = err
}

func (m *RecordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[msg.To]; ok {
		return err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *RecordingMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
