package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	gomail "gopkg.in/mail.v2"
)

type gomailClient struct {
	fromEmail string
	dialer    *gomail.Dialer
}

func NewGomailClient(host string, port int, username, password, fromEmail string) (Client, error) {
	if host == "" {
		return nil, errors.New("smtp host is required")
	}

	dialer := gomail.NewDialer(host, port, username, password)

	return &gomailClient{
		fromEmail: fromEmail,
		dialer:    dialer,
	}, nil
}

func (c *gomailClient) Send(templateFile, username, email string, data any) (int, error) {
	// Template parsing and building
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return -1, err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return -1, err
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return -1, err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", message.FormatAddress(c.fromEmail, FromName))
	message.SetHeader("To", email)
	message.SetHeader("Subject", subject.String())
	message.SetBody("text/html", body.String())

	var retryErr error
	for i := 0; i < maxRetries; i++ {
		retryErr = c.dialer.DialAndSend(message)
		if retryErr == nil {
			return 200, nil
		}
		// Backoff before retrying
		time.Sleep(time.Second * time.Duration(i+1))
	}

	return -1, fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, retryErr)
}
