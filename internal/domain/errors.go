package domain

import "errors"

var (
	// ErrProductNotFound is returned when a tracked product does not exist
	ErrProductNotFound = errors.New("tracked product not found")

	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateProduct is returned by the store when (user, url) is already tracked
	ErrDuplicateProduct = errors.New("product already tracked for this user")

	// ErrExtractionFailed is returned when the extraction service yields nothing
	ErrExtractionFailed = errors.New("could not extract product information")

	// ErrIncompleteExtraction is returned when required extracted fields are missing
	ErrIncompleteExtraction = errors.New("extracted product information is incomplete")

	// ErrInvalidPrice is returned when a price string cannot be normalized
	ErrInvalidPrice = errors.New("invalid price format")

	// ErrStoreUnavailable is returned when the product store cannot be reached
	ErrStoreUnavailable = errors.New("product store unavailable")

	// ErrRunInProgress is returned when a reconciliation run is already active
	ErrRunInProgress = errors.New("price check already in progress")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotificationFailed is returned when a notification sink could not deliver
	ErrNotificationFailed = errors.New("notification delivery failed")

	// ErrUnauthorized is returned when a bearer credential is missing or wrong
	ErrUnauthorized = errors.New("unauthorized")
)
