package payouts

import "errors"

var (
	ErrInsufficientBalance   = errors.New("requested amount exceeds available balance")
	ErrNoVerifiedBankDetails = errors.New("no verified bank details on file")
	ErrInvalidWithdrawalType = errors.New("payout_type must be host or referrer")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
)
