package voucher

import "errors"

var (
	// ErrUnknownKind indicates a document kind with no account mapping. This
	// is a programmer error and fails before any sequence number is consumed.
	ErrUnknownKind = errors.New("voucher: unknown document kind")
	// ErrMappingNotFound indicates the mapping store has no entry and no
	// built-in default covers the kind.
	ErrMappingNotFound = errors.New("voucher: account mapping not found")
	// ErrUnbalanced indicates debit and credit totals diverge.
	ErrUnbalanced = errors.New("voucher: lines must balance")
	// ErrTooFewLines indicates a voucher with less than two legs.
	ErrTooFewLines = errors.New("voucher: requires at least two lines")
)
