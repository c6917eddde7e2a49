package common

// EmailSender delivers a single HTML email. The worker plugs a real transport
// in here; everything upstream only knows this contract.
type EmailSender interface {
	Send(from, to, subject, html string) error
}

// Email is one captured message.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail collects sent messages instead of delivering them. Tests
// inspect Outbox after the fact.
type InMemoryEmail struct {
	Outbox []Email
}

// Send appends the message to the outbox.
func (m *InMemoryEmail) Send(from, to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{From: from, To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards every message. Used until a real relay is wired in.
type NopEmailSender struct{}

// Send discards the message.
func (NopEmailSender) Send(string, string, string, string) error { return nil }
