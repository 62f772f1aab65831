package api

import (
	"time"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/quiz"
	"github.com/victornm/quotient/internal/session"
)

type (
	User struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}

	Group struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Members    []string  `json:"members"`
		QuoteBank  []string  `json:"quoteBank"`
		CreateTime time.Time `json:"createTime"`
	}

	Quote struct {
		ID         string    `json:"id"`
		Text       string    `json:"text"`
		Author     string    `json:"author"`
		CreatedBy  string    `json:"createdBy"`
		GroupID    string    `json:"groupId"`
		CreateTime time.Time `json:"createTime"`
		UpdateTime time.Time `json:"updateTime"`
	}

	// Question hides the author until the attempt is graded.
	Question struct {
		Index   int    `json:"index"`
		QuoteID string `json:"quoteId"`
		Text    string `json:"text"`
	}

	Attempt struct {
		ID         string     `json:"id,omitempty"`
		GroupID    string     `json:"groupId"`
		Questions  []Question `json:"questions"`
		Answers    []string   `json:"answers"`
		Empty      bool       `json:"empty"`
		CreateTime time.Time  `json:"createTime"`
	}

	Review struct {
		Text    string `json:"text"`
		Author  string `json:"author"`
		Answer  string `json:"answer"`
		Correct bool   `json:"correct"`
	}

	QuizResult struct {
		ID         string    `json:"id"`
		GroupID    string    `json:"groupId"`
		Player     string    `json:"player"`
		Score      int       `json:"score"`
		Correct    int       `json:"correct"`
		Total      int       `json:"total"`
		CreateTime time.Time `json:"createTime"`
	}

	Submission struct {
		AttemptID  string        `json:"attemptId"`
		Correct    int           `json:"correct"`
		Total      int           `json:"total"`
		Percentage int           `json:"percentage"`
		Review     []Review      `json:"review"`
		Saved      bool          `json:"saved"`
		SaveError  *errors.Error `json:"saveError,omitempty"`
		Result     *QuizResult   `json:"result,omitempty"`
	}
)

func toUser(u *domain.User, displayName string) User {
	return User{
		ID:          u.UserID,
		Name:        u.Name,
		Email:       u.Email,
		DisplayName: displayName,
	}
}

func toGroup(g *domain.Group) Group {
	return Group{
		ID:         g.GroupID,
		Name:       g.Name,
		Members:    g.Members,
		QuoteBank:  g.QuoteBank,
		CreateTime: g.CreateTime,
	}
}

func toGroups(gs []domain.Group) []Group {
	out := make([]Group, 0, len(gs))
	for i := range gs {
		out = append(out, toGroup(&gs[i]))
	}
	return out
}

func toQuote(q *domain.Quote) Quote {
	return Quote{
		ID:         q.QuoteID,
		Text:       q.Text,
		Author:     q.Author,
		CreatedBy:  q.CreatedBy,
		GroupID:    q.GroupID,
		CreateTime: q.CreateTime,
		UpdateTime: q.UpdateTime,
	}
}

func toQuotes(qs []domain.Quote) []Quote {
	out := make([]Quote, 0, len(qs))
	for i := range qs {
		out = append(out, toQuote(&qs[i]))
	}
	return out
}

func toAttempt(a *domain.Attempt, empty bool) Attempt {
	out := Attempt{
		ID:         a.AttemptID,
		GroupID:    a.GroupID,
		Questions:  make([]Question, 0, len(a.Questions)),
		Answers:    a.Answers,
		Empty:      empty,
		CreateTime: a.CreateTime,
	}
	for i, q := range a.Questions {
		out.Questions = append(out.Questions, Question{
			Index:   i,
			QuoteID: q.QuoteID,
			Text:    q.Text,
		})
	}
	if out.Answers == nil {
		out.Answers = []string{}
	}

	return out
}

func toQuizResult(r *domain.QuizResult) *QuizResult {
	if r == nil {
		return nil
	}

	return &QuizResult{
		ID:         r.ResultID,
		GroupID:    r.GroupID,
		Player:     r.Player,
		Score:      r.Score,
		Correct:    r.Correct,
		Total:      r.Total,
		CreateTime: r.CreateTime,
	}
}

func toSubmission(resp *session.SubmitAttemptResponse) Submission {
	a := resp.Attempt
	out := Submission{
		AttemptID:  a.AttemptID,
		Correct:    resp.Grade.Correct,
		Total:      resp.Grade.Total,
		Percentage: resp.Grade.Percentage,
		Review:     make([]Review, 0, len(a.Questions)),
		Saved:      resp.Saved,
		SaveError:  resp.SaveError,
		Result:     toQuizResult(resp.Result),
	}
	for i, q := range a.Questions {
		out.Review = append(out.Review, Review{
			Text:    q.Text,
			Author:  q.Author,
			Answer:  a.Answers[i],
			Correct: quiz.Match(a.Answers[i], q.Author),
		})
	}

	return out
}
