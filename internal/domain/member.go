package domain

// Participant is the identity behind a live connection or a room member.
// No transport or lifecycle logic here.
type Participant struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(u *User) Participant {
	return Participant{ID: u.ID, Name: u.DisplayName(), Language: u.Language}
}

// Lang returns the preferred language, falling back to DefaultLanguage.
func (p Participant) Lang() string {
	if p.Language == "" {
		return DefaultLanguage
	}
	return p.Language
}

// DisplayName falls back to the identity when no name is known.
func (p Participant) DisplayName() string {
	if p.Name == "" {
		return string(p.ID)
	}
	return p.Name
}
