package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrNoAccount              = errors.New("no account configured")
	ErrNoContract             = errors.New("contract address not configured")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrFinalityTimeout        = errors.New("transaction did not reach the requested status")
	ErrTransactionNotAccepted = errors.New("transaction not accepted")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrLockHeld               = errors.New("lock held by another process")
)
