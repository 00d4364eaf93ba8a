package shared

import "errors"

var (
	// ErrUnbalancedPosting indicates debit != credit.
	ErrUnbalancedPosting = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal group requires at least two lines")
	// ErrGroupNotFound indicates missing journal group.
	ErrGroupNotFound = errors.New("accounting: journal group not found")
	// ErrGroupAlreadyPosted indicates a live group already exists for the source.
	ErrGroupAlreadyPosted = errors.New("accounting: source already posted")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrAccountNotFound indicates missing chart-of-accounts node.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrInvalidDocumentState indicates the document cannot be posted.
	ErrInvalidDocumentState = errors.New("accounting: document state does not allow posting")
	// ErrConcurrencyConflict indicates a stale document version.
	ErrConcurrencyConflict = errors.New("accounting: document version conflict")
)
