package room

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrNameEmpty     = errors.New("name must not be empty")
	ErrNameTooLong   = errors.New("name is too long")
	ErrNameBadChars  = errors.New("name contains forbidden characters")
	ErrNameForbidden = errors.New("name contains a forbidden word")
	ErrBadRoomID     = errors.New("room id must be at most 10 alphanumeric characters")
)

const (
	maxNameLength   = 50
	maxRoomIDLength = 10
)

// ValidateName applies the display/room name hygiene rules: no markup
// characters and no "ek" substring in any case. The substring rule is kept
// for parity with the upstream service this server replaces.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if strings.ContainsAny(name, `<>&"'`) {
		return ErrNameBadChars
	}
	if strings.Contains(strings.ToLower(name), "ek") {
		return ErrNameForbidden
	}
	return nil
}

// ValidateRoomID applies the room id rules: non-empty, at most 10 characters,
// Unicode letters and digits only.
func ValidateRoomID(id string) error {
	if id == "" || len(id) > maxRoomIDLength {
		return ErrBadRoomID
	}
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ErrBadRoomID
		}
	}
	return nil
}
