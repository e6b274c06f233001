package utils

import "github.com/google/uuid"

// GenerateHolderToken issues an opaque checkout session token. Holds are
// keyed by it, so it must not be guessable.
func GenerateHolderToken() string {
	return "hold_" + uuid.NewString()
}

func GenerateRequestID() string {
	return uuid.NewString()
}
