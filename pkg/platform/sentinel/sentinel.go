package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and capability
// adapters return these (optionally wrapped) so services can translate them
// into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: operation conflicts with current entity state
// - ErrExpired: template past its expiry timestamp
// - ErrInvalidState: entity in wrong lifecycle state for the operation
// - ErrUnavailable: capability or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
