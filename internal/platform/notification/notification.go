// Package notification delivers patient-facing messages over email and push,
// rendering bodies from named templates.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// NotificationType represents the channel used to deliver a notification.
type NotificationType string

// TypeEmail marks templates rendered for email. Push reuses the email subject
// and body.
const TypeEmail NotificationType = "email"

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PushSender delivers a message to a single registered device.
type PushSender interface {
	SendPush(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

// TemplateFirstSession announces the first scheduled session of a newly paid
// package.
const TemplateFirstSession = "first-session"

// Template defines a reusable notification template.
type Template struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Subject string           `json:"subject"`
	Body    string           `json:"body"`
	Type    NotificationType `json:"type"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.RegisterTemplate(Template{
		ID:      TemplateFirstSession,
		Name:    "First Session Scheduled",
		Subject: "Your first {{package_name}} session at {{clinic_name}}",
		Body: "Dear {{patient_name}}, your payment has been confirmed. Your first {{package_name}} session " +
			"is scheduled for {{date}} at {{time}}{{coach_clause}} at {{clinic_name}}. We look forward to seeing you.",
		Type: TypeEmail,
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
