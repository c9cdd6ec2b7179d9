package dataset

import (
	"errors"
	"regexp"
)

const MaxNameLength = 128

var (
	ErrEmptyName         = errors.New("dataset name cannot be empty")
	ErrNameTooLong       = errors.New("dataset name exceeds 128 characters")
	ErrInvalidCharacters = errors.New("dataset name contains invalid characters; only A-Z, a-z, 0-9, dash, underscore, and dot are allowed")
)

var validNamePattern = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !validNamePattern.MatchString(name) {
		return ErrInvalidCharacters
	}
	return nil
}
