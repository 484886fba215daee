package services

import "errors"

// Engine error taxonomy. Every rejection is one of these, wrapped with
// context via fmt.Errorf("%w: ..."); callers branch with errors.Is.
var (
	// ErrIllegalTransition: wrong actor or wrong state. No mutation happened.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrUnsupportedAction: the action name is not part of the protocol.
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrValidation: missing or invalid payload (e.g. non-positive amount).
	ErrValidation = errors.New("validation error")

	// ErrAmountResolution: the payment step could not determine an amount to
	// charge; the caller should supply one explicitly.
	ErrAmountResolution = errors.New("could not resolve payment amount")

	// ErrInvalidSignature: the gateway confirmation signature did not verify.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrDuplicatePayment: this gateway payment id was already confirmed.
	// Idempotent-safe; handlers treat it as the prior success.
	ErrDuplicatePayment = errors.New("payment already confirmed")

	// ErrGateway: the gateway rejected order creation; the whole transition
	// was aborted.
	ErrGateway = errors.New("payment gateway error")

	// ErrPersistence: a storage write failed mid-transition and everything
	// was rolled back.
	ErrPersistence = errors.New("persistence error")

	// ErrForbidden: the caller is neither a participant nor an admin.
	ErrForbidden = errors.New("not a participant")
)
