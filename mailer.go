package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
)

// Mailer dispatches OTP codes. Sends are fire-and-forget from the caller's
// point of view but failures must surface, never be swallowed.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer speaks implicit-TLS SMTP (port 465 style).
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", m.from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	addr := m.host + ":" + m.port
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.host}}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer rawConn.Close()

	client, err := smtp.NewClient(rawConn, m.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// LogMailer is the local-development fallback; it prints the mail instead
// of sending it so the OTP flow stays usable without an SMTP account.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail (log mode) to=%s subject=%q body=%q", to, subject, body)
	return nil
}

func otpMailSubject(purpose OTPPurpose) string {
	if purpose == PurposePasswordReset {
		return "Project Thrift password reset code"
	}
	return "Project Thrift verification code"
}

func otpMailBody(code string, purpose OTPPurpose) string {
	action := "verify your account"
	if purpose == PurposePasswordReset {
		action = "reset your password"
	}
	return fmt.Sprintf("<p>Use code <b>%s</b> to %s. It expires in 5 minutes.</p>", code, action)
}
