// Package mail sends the contact-form notification email. The production
// implementation uses Brevo's transactional API; handlers depend only on
// the Mailer interface so tests can substitute a stub.
package mail

import "context"

// Message is one outbound transactional email. Body content must already
// be HTML-escaped by the caller; this package does not sanitize.
type Message struct {
	FromName  string
	FromEmail string
	ToEmail   string

	// ReplyTo carries the submitter's address so staff can answer the
	// notification directly.
	ReplyToName  string
	ReplyToEmail string

	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers a single message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
