package refund

import (
	"strings"
	"unicode/utf8"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const (
	MaxReasonLength = 500
	MaxNoteLength   = 500
	MaxNotesLength  = 2000
	amountScale     = 2
)

// ValidateCreation checks a requested amount against what is still refundable.
func ValidateCreation(paymentTotal, alreadyRefunded, requested decimal.Decimal) error {
	if !requested.IsPositive() {
		return internal.ErrInvalidAmount.WithMessage("refund amount must be positive, got %s", requested.String())
	}
	remaining := paymentTotal.Sub(alreadyRefunded)
	if requested.GreaterThan(remaining) {
		return internal.ErrInvalidAmount.WithMessage("refund amount %s exceeds refundable balance %s", requested.String(), remaining.String())
	}
	return nil
}

func ValidateTransition(current, target Status) error {
	if !current.CanTransitionTo(target) {
		return internal.ErrIllegalTransition.WithMessage("refund cannot move from %s to %s", current, target)
	}
	return nil
}

func ValidateActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return internal.ErrMissingActor
	}
	return nil
}

// ValidateRequestFields checks the free-text and enumerated inputs of a request.
func ValidateRequestFields(amount decimal.Decimal, reason string, method Method, note string) error {
	v := validation.NewValidator()
	v.Field("amount", amount).MaxScale(amountScale, internal.ErrCodeInvalidAmount)
	v.Field("reason", reason).MaxLength(MaxReasonLength)
	v.Field("method", string(method)).OneOf(allMethods, internal.ErrCodeInvalidMethod)
	v.Field("note", note).MaxLength(MaxNoteLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func ValidateNote(note string) error {
	v := validation.NewValidator()
	v.Field("note", note).MaxLength(MaxNoteLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func validateNotesTotal(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return internal.NewValidationFieldError("notes", "notes must not exceed 2000 characters", internal.ErrCodeNotesTooLong)
	}
	return nil
}
