package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that canonical record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordAlreadyExists indicates that a record with this id already
	// exists (a concurrent blind insert won the race)
	ErrRecordAlreadyExists = errors.New("record already exists")

	// ErrVersionMismatch indicates that the conditional update matched zero
	// rows: another writer advanced the record version in between
	ErrVersionMismatch = errors.New("record version mismatch")

	// ErrConflictNotFound indicates that conflict ledger entry was not found
	ErrConflictNotFound = errors.New("conflict entry not found")

	// ErrAlreadyResolved indicates that conflict ledger entry has already
	// been resolved; resolved entries are immutable
	ErrAlreadyResolved = errors.New("conflict entry already resolved")

	// ErrDeviceNotFound indicates that device was not found in storage
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceAlreadyExists indicates that device with this id already exists
	ErrDeviceAlreadyExists = errors.New("device already exists")
)
