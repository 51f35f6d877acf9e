package payments

import "errors"

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrUnknownReference = errors.New("unknown checkout reference")
	ErrItemTypeInvalid  = errors.New("invalid item type")
)
