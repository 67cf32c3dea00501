package domain

import "errors"

var (
	// ErrEventNotFound indicates an unknown event id.
	ErrEventNotFound = errors.New("event not found")
	// ErrMerchNotFound indicates an unknown merchandise id.
	ErrMerchNotFound = errors.New("merchandise not found")
	// ErrParticipationNotFound is returned when the participant never started the event.
	ErrParticipationNotFound = errors.New("participation not found")
	// ErrOrderNotFound indicates an unknown order id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidState is returned when an operation is not valid for the
	// record's current state, e.g. submitting before starting.
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrInsufficientFunds is returned when a debit would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient points balance")
	// ErrInsufficientStock is returned when a reservation exceeds remaining stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrMerchUnavailable is returned when the item is withdrawn from sale.
	ErrMerchUnavailable = errors.New("merchandise not available")
	// ErrEmptyQuiz flags a quiz published with zero questions; scoring it
	// is a configuration error, never a 0% result.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrAlreadyProcessed marks a duplicate mutation that was
	// short-circuited to its prior result.
	ErrAlreadyProcessed = errors.New("already processed")
)
