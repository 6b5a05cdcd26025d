// Package smtp реализует исходящую почту поверх net/smtp со STARTTLS.
package smtp

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"

	"github.com/fromelabs/chat-backend/internal/config"
	"github.com/fromelabs/chat-backend/internal/lib/sl"
)

// Session одно SMTP-соединение, готовое к отправке письма.
type Session interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer устанавливает SMTP-сессии. Сервис отправки зависит от этого
// интерфейса, а не от конкретного транспорта.
type Dialer interface {
	Dial() (Session, error)
	From() string
}

// Transport реализует Dialer: TCP-соединение, обязательный STARTTLS
// и PLAIN-аутентификация.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создает транспорт с настройками из секции SMTP конфига.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

type session struct {
	client *smtp.Client
}

func (s *session) Mail(from string) error        { return s.client.Mail(from) }
func (s *session) Rcpt(to string) error          { return s.client.Rcpt(to) }
func (s *session) Data() (io.WriteCloser, error) { return s.client.Data() }
func (s *session) Quit() error                   { return s.client.Quit() }
func (s *session) Close() error                  { return s.client.Close() }

// Dial открывает соединение с SMTP-сервером. Сервер без поддержки
// STARTTLS считается ошибкой конфигурации.
func (t *Transport) Dial() (Session, error) {
	const op = "smtp.Transport.Dial"

	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", op, addr, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		t.closeQuiet(conn)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		t.closeQuiet(client)
		return nil, fmt.Errorf("%s: server does not support STARTTLS", op)
	}
	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		t.closeQuiet(client)
		return nil, fmt.Errorf("%s: starttls: %w", op, err)
	}

	auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPassword, t.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		t.closeQuiet(client)
		return nil, fmt.Errorf("%s: auth: %w", op, err)
	}

	return &session{client: client}, nil
}

// From возвращает адрес отправителя.
func (t *Transport) From() string {
	return t.cfg.SMTPUser
}

func (t *Transport) closeQuiet(c io.Closer) {
	if err := c.Close(); err != nil {
		t.log.Warn("failed to close smtp connection", sl.Err(err))
	}
}
