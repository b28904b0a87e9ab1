package domain

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	dErrors "credara/pkg/domain-errors"
)

// CredaraID is the public, human-shareable identifier assigned once at
// onboarding. Format: fixed lowercase prefix plus a 10-character random
// suffix. Uniqueness is enforced by the profile store; the random suffix
// keeps collision probability negligible at expected scale.
type CredaraID string

const (
	credaraIDPrefix    = "crd-"
	credaraIDSuffixLen = 10

	// nanoid default alphabet, matching the suffix charset used historically.
	credaraIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

func (c CredaraID) String() string { return string(c) }
func (c CredaraID) IsZero() bool   { return c == "" }

// NewCredaraID generates a fresh credara ID.
func NewCredaraID() (CredaraID, error) {
	suffix, err := gonanoid.Generate(credaraIDAlphabet, credaraIDSuffixLen)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate credara id")
	}
	return CredaraID(credaraIDPrefix + suffix), nil
}

// ParseCredaraID validates an externally supplied credara ID.
func ParseCredaraID(s string) (CredaraID, error) {
	if !strings.HasPrefix(s, credaraIDPrefix) {
		return "", dErrors.New(dErrors.CodeValidation, "credara id must start with "+credaraIDPrefix)
	}
	suffix := strings.TrimPrefix(s, credaraIDPrefix)
	if len(suffix) != credaraIDSuffixLen {
		return "", dErrors.New(dErrors.CodeValidation, "credara id suffix must be 10 characters")
	}
	for _, r := range suffix {
		if !strings.ContainsRune(credaraIDAlphabet, r) {
			return "", dErrors.New(dErrors.CodeValidation, "credara id contains invalid characters")
		}
	}
	return CredaraID(s), nil
}
