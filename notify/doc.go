// Package notify provides outbound delivery implementations of the
// profauth.Notifier collaborator: SMTP email delivery and test doubles.
// SMS delivery is intentionally unimplemented and fails loudly.
package notify
