package domain

const (
	EventNameGroupCreated       = "group.created"
	EventNameGroupUpdated       = "group.updated"
	EventNameQuoteCreated       = "quote.created"
	EventNameQuoteUpdated       = "quote.updated"
	EventNameQuoteDeleted       = "quote.deleted"
	EventNameResultRecorded     = "result.recorded"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventGroupCreated struct {
	Group Group
}

func (EventGroupCreated) Name() string { return EventNameGroupCreated }

type EventGroupUpdated struct {
	Group Group
}

func (EventGroupUpdated) Name() string { return EventNameGroupUpdated }

type EventQuoteCreated struct {
	Quote Quote
}

func (EventQuoteCreated) Name() string { return EventNameQuoteCreated }

type EventQuoteUpdated struct {
	Quote Quote
}

func (EventQuoteUpdated) Name() string { return EventNameQuoteUpdated }

type EventQuoteDeleted struct {
	Quote Quote
}

func (EventQuoteDeleted) Name() string { return EventNameQuoteDeleted }

type EventResultRecorded struct {
	Result QuizResult
}

func (EventResultRecorded) Name() string { return EventNameResultRecorded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
