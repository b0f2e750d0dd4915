package api

import (
	"time"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
)

// EntryView is a leaderboard entry with its value formatted for display.
type EntryView struct {
	UserName string    `json:"userName"`
	Value    float64   `json:"value"`
	Display  string    `json:"display"`
	Date     time.Time `json:"date"`
}

// CellView mirrors leaderboard.Cell with display values.
type CellView struct {
	Male   []EntryView `json:"Male"`
	Female []EntryView `json:"Female"`
}

// LeaderboardResponse is the body of the full leaderboard endpoints.
type LeaderboardResponse struct {
	Leaderboards map[string]map[leaderboard.AgeCategory]CellView `json:"leaderboards"`
	UpdatedAt    time.Time                                       `json:"updatedAt"`
	Stale        bool                                            `json:"stale"`
}

// ActivityLeaderboardResponse is the body of GET /v1/leaderboards/{activity}.
// Entries replaces Categories when a gender filter is applied.
type ActivityLeaderboardResponse struct {
	Activity   string                                  `json:"activity"`
	Unit       string                                  `json:"unit,omitempty"`
	Gender     leaderboard.Gender                      `json:"gender,omitempty"`
	Categories map[leaderboard.AgeCategory]CellView    `json:"categories,omitempty"`
	Entries    map[leaderboard.AgeCategory][]EntryView `json:"entries,omitempty"`
	UpdatedAt  time.Time                               `json:"updatedAt"`
}

// RecordView is a personal record with its display value.
type RecordView struct {
	leaderboard.Result
	Display string `json:"display"`
}

// RecordsResponse is the body of GET /v1/athletes/{name}/records.
type RecordsResponse struct {
	Athlete string                `json:"athlete"`
	Records map[string]RecordView `json:"records"`
}

// RecordResultRequest is the body of POST /v1/results. Date defaults to now.
type RecordResultRequest struct {
	UserName string     `json:"userName"`
	Activity string     `json:"activity"`
	Value    *float64   `json:"value"`
	Date     *time.Time `json:"date,omitempty"`
}

// UpdateResultRequest is the body of PATCH /v1/results/{id}.
type UpdateResultRequest struct {
	Value *float64 `json:"value"`
}

// RegisterUserRequest is the body of POST /v1/users.
type RegisterUserRequest struct {
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Gender    leaderboard.Gender `json:"gender"`
	Birthdate string             `json:"birthdate"`
	Email     string             `json:"email"`
}

// RenameActivityRequest is the body of POST /v1/activities/rename.
type RenameActivityRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func entryViews(activity string, entries []leaderboard.Entry) []EntryView {
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryView{
			UserName: e.UserName,
			Value:    e.Value,
			Display:  leaderboard.FormatValue(activity, e.Value),
			Date:     e.Date,
		})
	}
	return out
}

func cellViews(activity string, cells map[leaderboard.AgeCategory]leaderboard.Cell) map[leaderboard.AgeCategory]CellView {
	out := make(map[leaderboard.AgeCategory]CellView, len(cells))
	for category, cell := range cells {
		out[category] = CellView{
			Male:   entryViews(activity, cell.Male),
			Female: entryViews(activity, cell.Female),
		}
	}
	return out
}

func leaderboardResponse(board leaderboard.Leaderboard, updatedAt time.Time, stale bool) LeaderboardResponse {
	resp := LeaderboardResponse{
		Leaderboards: make(map[string]map[leaderboard.AgeCategory]CellView, len(board)),
		UpdatedAt:    updatedAt,
		Stale:        stale,
	}
	for activity, cells := range board {
		resp.Leaderboards[activity] = cellViews(activity, cells)
	}
	return resp
}

func storedResponse(stored *domain.StoredLeaderboard) LeaderboardResponse {
	return leaderboardResponse(stored.Leaderboard, stored.UpdatedAt, false)
}
