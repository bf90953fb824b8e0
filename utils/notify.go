package utils

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"courseportal/models/course"

	"github.com/go-resty/resty/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Notifier delivers enrollment events somewhere outside the service.
type Notifier interface {
	Notify(ctx context.Context, event course.EnrollmentEvent) error
}

// MultiNotifier sends to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event course.EnrollmentEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WebhookNotifier POSTs each event as JSON.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "courseportal-webhook/1")
	return &WebhookNotifier{client: client, url: url}
}

func (w *WebhookNotifier) Notify(ctx context.Context, event course.EnrollmentEvent) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", "enrollment."+string(event.Status)).
		SetBody(event).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook rejected event: %s %s", resp.Status(), resp.String())
	}
	return nil
}

// EmailNotifier tells the student about the outcome of their enrollment.
type EmailNotifier struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewEmailNotifier(apiKey, sender string) *EmailNotifier {
	return &EmailNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Course Portal", sender),
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, event course.EnrollmentEvent) error {
	if event.StudentEmail == "" {
		return nil
	}
	subject, body, ok := enrollmentEmail(event)
	if !ok {
		return nil
	}

	to := mail.NewEmail("", event.StudentEmail)
	message := mail.NewSingleEmail(n.from, subject, to, subject, getEmailTemplate(subject, body))

	// Send writes the body into the client, so each call gets its own copy.
	client := *n.client
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func enrollmentEmail(e course.EnrollmentEvent) (subject, body string, ok bool) {
	title := html.EscapeString(e.CourseTitle)
	switch e.Status {
	case course.StatusApproved:
		return "Enrollment approved",
			fmt.Sprintf(`<p>Your enrollment in <strong>%s</strong> has been approved.</p>
				<div class="info-box">You now have a seat in this course.</div>`, title), true
	case course.StatusRejected:
		return "Enrollment not approved",
			fmt.Sprintf(`<p>Your enrollment request for <strong>%s</strong> was not approved.</p>`, title), true
	case course.StatusCancelled:
		return "Enrollment cancelled",
			fmt.Sprintf(`<p>Your enrollment request for <strong>%s</strong> has been cancelled.</p>`, title), true
	}
	return "", "", false
}
