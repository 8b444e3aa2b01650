package mailprobe

import "errors"

var (
	// ErrInvalidSMTPOptions is returned when WithSMTP is called
	// but HeloDomain or MailFrom is missing.
	ErrInvalidSMTPOptions = errors.New("mailprobe: SMTPOptions requires HeloDomain and MailFrom")
)
