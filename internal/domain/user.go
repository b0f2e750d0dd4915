package domain

import (
	"strings"
	"time"

	"example.com/performance/internal/leaderboard"
)

// User is a roster member. FullName is the key results are recorded under.
type User struct {
	ID        string             `json:"id"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Gender    leaderboard.Gender `json:"gender"`
	Birthdate string             `json:"birthdate"`
	Email     string             `json:"email,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// FullName joins first and last name with one space and trims the ends.
// Whitespace inside either part is kept as stored.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Athlete projects the user onto what the aggregator needs.
func (u User) Athlete() leaderboard.Athlete {
	return leaderboard.Athlete{FullName: u.FullName(), Gender: u.Gender, Birthdate: u.Birthdate}
}

// Athletes projects a roster.
func Athletes(users []User) []leaderboard.Athlete {
	out := make([]leaderboard.Athlete, 0, len(users))
	for _, u := range users {
		out = append(out, u.Athlete())
	}
	return out
}

// SameName compares result user names the way the aggregator joins them.
func SameName(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
