// Package mailer отправляет письма через SMTP либо выводит их в лог.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message описывает исходящее письмо.
type Message struct {
	Subject    string
	Sender     string
	Recipients []string
	Body       string
}

// ErrNoRecipients возвращается для письма без получателей.
var ErrNoRecipients = errors.New("message has no recipients")

// Mailer доставляет письма.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig содержит параметры подключения к почтовому серверу.
type SMTPConfig struct {
	Host     string
	Port     int
	Login    string
	Password string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer отправляет письма через SMTP-сервер.
type SMTPMailer struct {
	dialer dialer
}

// NewSMTPMailer создаёт SMTPMailer для указанного сервера.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Login, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	return &SMTPMailer{dialer: d}
}

// Send отправляет письмо. Ошибка означает, что письмо не доставлено на сервер.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := buildMessage(msg)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildMessage(msg Message) *gomail.Message {
	gm := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.QuotedPrintable),
	)
	gm.SetHeader("From", msg.Sender)
	gm.SetHeader("To", msg.Recipients...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)
	return gm
}

// ConsoleMailer выводит письма в лог вместо отправки. Используется вне production.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsoleMailer создаёт ConsoleMailer.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{logger: logger}
}

// Send записывает письмо в лог.
func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	m.logger.Info("email to console",
		zap.String("subject", msg.Subject),
		zap.String("sender", msg.Sender),
		zap.Strings("recipients", msg.Recipients),
		zap.String("body", msg.Body),
	)
	return nil
}
