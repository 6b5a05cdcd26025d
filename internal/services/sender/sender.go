// Package services содержит логику отправки писем о состоянии подписки.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/lib/smtp"
	"github.com/fromelabs/chat-backend/internal/models"
)

// SenderService отправляет пользователям письма из очереди уведомлений.
type SenderService struct {
	mailer smtp.Dialer
	log    *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, mailer smtp.Dialer) *SenderService {
	return &SenderService{
		mailer: mailer,
		log:    log,
	}
}

// HandleNotification разбирает сообщение очереди и отправляет письмо,
// соответствующее виду уведомления. Неизвестные виды подтверждаются
// без отправки.
func (s *SenderService) HandleNotification(body []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	switch event.Kind {
	case models.NotificationPaymentFailed:
		return s.sendPaymentFailed(event)
	case models.NotificationSubscriptionCanceled:
		return s.sendSubscriptionCanceled(event)
	default:
		s.log.Warn("unknown notification kind", slog.String("kind", event.Kind))
		return nil
	}
}

func (s *SenderService) sendPaymentFailed(event models.NotificationEvent) error {
	subject := "Не удалось продлить подписку"
	bodyText := fmt.Sprintf("Здравствуйте, %s!\n\nНе удалось списать оплату за план %s. Доступ к сервису сохранён, но мы повторим попытку списания.\n\nПожалуйста, проверьте способ оплаты в личном кабинете.",
		event.Name, event.Plan)
	return s.sendEmail([]string{event.Email}, subject, bodyText)
}

func (s *SenderService) sendSubscriptionCanceled(event models.NotificationEvent) error {
	subject := "Подписка отменена"
	bodyText := fmt.Sprintf("Здравствуйте, %s!\n\nВаша подписка отменена, аккаунт переведён на бесплатный план.\n\nОформить новую подписку можно в любой момент в личном кабинете.",
		event.Name)
	return s.sendEmail([]string{event.Email}, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.mailer.From(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.mailer.Dial()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.mailer.From()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.mailer.From(), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
