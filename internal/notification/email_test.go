package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(sendErr error) (*EmailService, chan sentMail, *syncBuffer) {
	logs := &syncBuffer{}
	sent := make(chan sentMail, 1)
	s := NewEmailService(EmailConfig{
		Host:     "smtp.bank.example",
		Port:     587,
		From:     "noreply@bank.example",
		FromName: "PayPortal",
		To:       []string{"ops@bank.example", "audit@bank.example"},
	}, slog.New(slog.NewJSONHandler(logs, nil)))
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent <- sentMail{addr: addr, from: from, to: to, msg: string(msg)}
		return sendErr
	}
	return s, sent, logs
}

func testPayment(status domain.PaymentStatus) *domain.Payment {
	return &domain.Payment{
		ID:           uuid.New(),
		AmountCents:  10000,
		Currency:     "USD",
		Provider:     "SWIFT",
		PayeeAccount: "9876543210",
		SWIFTCode:    "ABCDUS33",
		Status:       status,
	}
}

func TestSendPaymentStatus(t *testing.T) {
	tests := []struct {
		status  domain.PaymentStatus
		subject string
	}{
		{domain.PaymentPending, "Payment awaiting verification"},
		{domain.PaymentProcessing, "Payment verified"},
		{domain.PaymentCompleted, "Payment completed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			s, sent, _ := newTestService(nil)
			p := testPayment(tt.status)

			if err := s.SendPaymentStatus(p); err != nil {
				t.Fatalf("SendPaymentStatus() error = %v", err)
			}

			mail := <-sent
			if mail.addr != "smtp.bank.example:587" || mail.from != "noreply@bank.example" {
				t.Errorf("envelope = %s %s", mail.addr, mail.from)
			}
			if len(mail.to) != 2 {
				t.Errorf("to = %v", mail.to)
			}
			for _, want := range []string{
				"Subject: " + tt.subject,
				"From: PayPortal <noreply@bank.example>",
				"To: ops@bank.example, audit@bank.example",
				"100.00 USD",
				"ABCDUS33",
				p.ID.String(),
			} {
				if !strings.Contains(mail.msg, want) {
					t.Errorf("message missing %q", want)
				}
			}
		})
	}
}

func TestPaymentChanged_LogsFailures(t *testing.T) {
	s, sent, logs := newTestService(errors.New("connection refused"))

	s.PaymentChanged(context.Background(), testPayment(domain.PaymentCompleted))

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not sent")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "connection refused") {
		if time.Now().After(deadline) {
			t.Fatal("send failure was not logged")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestShutdown_DrainsInFlightNotifications(t *testing.T) {
	s, _, logs := newTestService(nil)
	release := make(chan struct{})
	var delivered sync.WaitGroup
	delivered.Add(1)
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		delivered.Done()
		return nil
	}

	s.PaymentChanged(context.Background(), testPayment(domain.PaymentProcessing))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() with a send outstanding = %v, want deadline exceeded", err)
	}

	close(release)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	delivered.Wait()

	// Nothing new starts once shutdown has begun.
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("notification sent after shutdown")
		return nil
	}
	s.PaymentChanged(context.Background(), testPayment(domain.PaymentCompleted))
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if !strings.Contains(logs.String(), "dropped during shutdown") {
		t.Error("dropped notification was not logged")
	}
}

func TestSendEmail_NoRecipients(t *testing.T) {
	s, _, _ := newTestService(nil)
	s.config.To = nil

	if err := s.SendPaymentStatus(testPayment(domain.PaymentPending)); err == nil {
		t.Error("expected error without recipients")
	}
}
