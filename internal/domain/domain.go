package domain

import (
	"slices"
	"time"
)

// User is an identity owned by the external account service.
type User struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Group is a set of users sharing a quote bank and a leaderboard.
type Group struct {
	GroupID    string    `json:"-"`
	Name       string    `json:"name"`
	Members    []string  `json:"members"`
	QuoteBank  []string  `json:"quoteBank"`
	CreateTime time.Time `json:"-"`
}

// HasMember reports whether the user belongs to the group.
func (g *Group) HasMember(userID string) bool {
	return slices.Contains(g.Members, userID)
}

// Quote belongs to exactly one group, the one whose quote bank lists it.
type Quote struct {
	QuoteID    string    `json:"-"`
	Text       string    `json:"text"`
	Author     string    `json:"author"`
	CreatedBy  string    `json:"createdBy"`
	GroupID    string    `json:"groupId"`
	CreateTime time.Time `json:"-"`
	UpdateTime time.Time `json:"-"`
}

// QuizResult is one scored attempt by one player in one group. Append-only.
type QuizResult struct {
	ResultID   string    `json:"-"`
	GroupID    string    `json:"groupId"`
	Player     string    `json:"player"`
	Score      int       `json:"score"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	CreateTime time.Time `json:"-"`
}

// Question is a quote presented in a quiz.
type Question struct {
	QuoteID string `json:"quoteId"`
	Text    string `json:"text"`
	Author  string `json:"author"`
}

// Attempt is a solo quiz held on the server for one player.
type Attempt struct {
	AttemptID  string     `json:"attemptId"`
	GroupID    string     `json:"groupId"`
	Player     string     `json:"player"`
	Questions  []Question `json:"questions"`
	Answers    []string   `json:"answers"`
	CreateTime time.Time  `json:"createTime"`
}

// Leaderboard is the ranked view of quiz results of a group.
// Entries are sorted by score descending, then by creation time ascending.
type Leaderboard struct {
	GroupID string             `json:"groupId"`
	Entries []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	ResultID   string    `json:"resultId"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Score      int       `json:"score"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	CreateTime time.Time `json:"createTime"`
}
