package notification

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"

	"github.com/tendant/payportal/pkg/domain"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// To receives every payment notification.
	To []string
}

// EmailService mails the operations team when a payment enters the review
// queue or changes status.
type EmailService struct {
	config EmailConfig
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewEmailService(config EmailConfig, logger *slog.Logger) *EmailService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailService{config: config, logger: logger, send: smtp.SendMail}
}

// PaymentChanged sends the notification in the background and logs failures.
// Events arriving after Shutdown are dropped with a warning.
func (s *EmailService) PaymentChanged(ctx context.Context, p *domain.Payment) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("payment notification dropped during shutdown", "payment_id", p.ID, "status", p.Status)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		if err := s.SendPaymentStatus(p); err != nil {
			s.logger.Error("failed to send payment notification",
				"payment_id", p.ID,
				"status", p.Status,
				"error", err,
			)
		}
	}()
}

// Shutdown stops accepting notifications and waits for those in flight
// until ctx is done.
func (s *EmailService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("payment notifications still sending: %w", ctx.Err())
	}
}

// SendPaymentStatus mails the current status of p.
func (s *EmailService) SendPaymentStatus(p *domain.Payment) error {
	var subject, lead string
	switch p.Status {
	case domain.PaymentPending:
		subject = "Payment awaiting verification"
		lead = "A new payment has been submitted and is waiting in the review queue."
	case domain.PaymentProcessing:
		subject = "Payment verified"
		lead = "A payment has been verified and is now processing."
	case domain.PaymentCompleted:
		subject = "Payment completed"
		lead = "A payment has been completed."
	default:
		subject = "Payment " + string(p.Status)
		lead = "A payment changed status."
	}

	body := fmt.Sprintf(`<html><body>
		<h2>%s</h2>
		<p>%s</p>
		<table>
			<tr><td>Reference</td><td>%s</td></tr>
			<tr><td>Amount</td><td>%s %s</td></tr>
			<tr><td>Provider</td><td>%s</td></tr>
			<tr><td>Payee account</td><td>%s</td></tr>
			<tr><td>SWIFT code</td><td>%s</td></tr>
			<tr><td>Status</td><td>%s</td></tr>
		</table>
	</body></html>`,
		html.EscapeString(subject), html.EscapeString(lead),
		p.ID, p.Amount(), html.EscapeString(p.Currency),
		html.EscapeString(p.Provider), html.EscapeString(p.PayeeAccount),
		html.EscapeString(p.SWIFTCode), p.Status,
	)
	return s.sendEmail(s.config.To, subject, body)
}

func (s *EmailService) sendEmail(to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, strings.Join(to, ", "), subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.send(addr, auth, s.config.From, to, []byte(msg))
}
