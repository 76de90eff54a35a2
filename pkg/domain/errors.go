package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
)

// Owner and wallet errors
var (
	// ErrOwnerNotFound is returned when no owner matches the given id or email.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrEmailTaken is returned when another owner already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidOwnerType is returned for owner types outside the enumeration.
	ErrInvalidOwnerType = errors.New("invalid owner type")
)

// Ledger invariant errors
var (
	// ErrAmountMustBePositive is returned when a ledger amount is zero or negative.
	ErrAmountMustBePositive = errors.New("amount must be positive")
	// ErrInsufficientFunds is returned when a debit would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameOwner is returned when a transfer names the same owner on both sides.
	ErrSameOwner = errors.New("cannot transfer to the same owner")
	// ErrAlreadyFinal is returned when a terminal transaction is finalized again.
	ErrAlreadyFinal = errors.New("transaction already in a terminal state")
	// ErrInvalidStatus is returned when a status is not a valid target.
	ErrInvalidStatus = errors.New("invalid transaction status")
)
