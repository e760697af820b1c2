// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxNameLen     = 36
	MaxLanguageLen = 8

	DefaultLanguage = "en"
)

var (
	ErrNameTooLong     = errors.New("name too long")
	ErrNameEmpty       = errors.New("name empty")
	ErrLanguageInvalid = errors.New("invalid language code")
)

type UserID string

type User struct {
	ID        UserID `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Language  string `json:"language"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(firstName, lastName, language string) (*User, error) {
	u := &User{ID: UserID(uuid.NewString()), Language: DefaultLanguage}
	if err := u.SetName(firstName, lastName); err != nil {
		return nil, err
	}
	if language != "" {
		if err := u.SetLanguage(language); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (u *User) SetName(firstName, lastName string) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return ErrNameEmpty
	}
	if len(firstName) > MaxNameLen || len(lastName) > MaxNameLen {
		return ErrNameTooLong
	}
	u.FirstName, u.LastName = firstName, lastName
	return nil
}

func (u *User) SetLanguage(language string) error {
	language, err := NormalizeLanguage(language)
	if err != nil {
		return err
	}
	u.Language = language
	return nil
}

// DisplayName is what other members see as the message sender.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// NormalizeLanguage lower-cases a language code; an empty code maps to the default.
func NormalizeLanguage(language string) (string, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return DefaultLanguage, nil
	}
	if len(language) < 2 || len(language) > MaxLanguageLen {
		return "", ErrLanguageInvalid
	}
	for _, r := range language {
		if (r < 'a' || r > 'z') && r != '-' {
			return "", ErrLanguageInvalid
		}
	}
	return language, nil
}
