package mailer

import "errors"

var (
	// ErrNotConfigured indicates no mail transport is configured.
	ErrNotConfigured = errors.New("mail transport not configured")

	// ErrInvalidAddress indicates the recipient address is missing or malformed.
	ErrInvalidAddress = errors.New("invalid recipient address")

	// ErrSendFailed indicates the transport rejected or failed the delivery.
	ErrSendFailed = errors.New("failed to send email")
)
