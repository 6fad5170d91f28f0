package models

import (
	"errors"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrInvalidImage    = errors.New("images only (jpeg, jpg, png, gif)")
	ErrImageTooLarge   = errors.New("image exceeds size limit")
	ErrTooManyImages   = errors.New("more than one file for a photo field")
	ErrMalformedList   = errors.New("malformed list value")
	ErrUnexpectedField = errors.New("unexpected file field")
)
