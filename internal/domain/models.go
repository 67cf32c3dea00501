package domain

import "time"

// EventType classifies the activity a participant completes to earn points.
type EventType string

const (
	EventTypeQuiz     EventType = "QUIZ"
	EventTypeMinigame EventType = "MINIGAME"
	EventTypeQuest    EventType = "QUEST"
	EventTypePhoto    EventType = "PHOTO"
)

// Event is a published catalog entry. Immutable once published; the
// catalog owns it, the core only reads it.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        EventType `json:"eventType"`
	Points      int       `json:"points"`
	IsActive    bool      `json:"isActive"`
	Quiz        *Quiz     `json:"quiz,omitempty"`
}

// Quiz is the question set attached to a QUIZ event.
type Quiz struct {
	PassThreshold    int        `json:"passThreshold"` // percent required to pass
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	Questions        []Question `json:"questions"`
}

// Question is an MCQ question with exactly one correct answer.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Order   int      `json:"order"`
	Answers []Answer `json:"answers"`
}

// Answer is a candidate answer for a question.
type Answer struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// ParticipationState is the lifecycle of one participant on one event.
type ParticipationState string

const (
	StateNotStarted      ParticipationState = "NOT_STARTED"
	StateInProgress      ParticipationState = "IN_PROGRESS"
	StateQuizSubmitted   ParticipationState = "QUIZ_SUBMITTED"
	StateCompleted       ParticipationState = "COMPLETED"
	StateFeedbackGiven   ParticipationState = "FEEDBACK_GIVEN"
	StateFeedbackSkipped ParticipationState = "FEEDBACK_SKIPPED"
)

// Terminal reports whether no further mutation of the record is allowed.
func (s ParticipationState) Terminal() bool {
	return s == StateFeedbackGiven || s == StateFeedbackSkipped
}

// ParticipationRecord is the committed view of a participant's progress
// through one event: state, recorded answers, and the scoring outcome.
type ParticipationRecord struct {
	ParticipantID string             `json:"participantId"`
	EventID       string             `json:"eventId"`
	State         ParticipationState `json:"state"`
	Answers       map[string]string  `json:"answers,omitempty"` // question id -> chosen answer id
	Score         int                `json:"score"`             // percent, 0..100
	CorrectCount  int                `json:"correctCount,omitempty"`
	Passed        bool               `json:"passed"`
	Rating        int                `json:"rating,omitempty"`
	Comment       string             `json:"comment,omitempty"`
	StartedAt     time.Time          `json:"startedAt"`
	SubmittedAt   time.Time          `json:"submittedAt,omitempty"`
	FeedbackAt    time.Time          `json:"feedbackAt,omitempty"`
}

// QuizResult is the outcome of scoring one submitted answer set.
type QuizResult struct {
	CorrectCount   int  `json:"correctCount"`
	TotalQuestions int  `json:"totalQuestions"`
	ScorePercent   int  `json:"scorePercent"`
	Passed         bool `json:"passed"`
}

// TxReason explains a ledger mutation.
type TxReason string

const (
	ReasonEventReward   TxReason = "EVENT_REWARD"
	ReasonMerchPurchase TxReason = "MERCH_PURCHASE"
)

// LedgerTransaction is one committed signed delta on a participant's balance.
type LedgerTransaction struct {
	ParticipantID string    `json:"participantId"`
	Delta         int       `json:"delta"`
	Reason        TxReason  `json:"reason"`
	ReferenceID   string    `json:"referenceId"`
	Balance       int       `json:"balance"` // balance after this transaction
	At            time.Time `json:"at"`
}

// MerchType mirrors the merchandise categories of the catalog.
type MerchType string

const (
	MerchTShirt  MerchType = "T_SHIRT"
	MerchSticker MerchType = "STICKER"
	MerchHoodie  MerchType = "HOODIE"
	MerchCap     MerchType = "CAP"
	MerchBag     MerchType = "BAG"
	MerchOther   MerchType = "OTHER"
)

// Merchandise is a redeemable item with finite stock.
type Merchandise struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Type          MerchType `json:"merchType"`
	PointsCost    int       `json:"pointsCost"`
	StockQuantity int       `json:"stockQuantity"`
	IsAvailable   bool      `json:"isAvailable"`
}

// OrderStatus is the lifecycle of a redemption order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderFailed    OrderStatus = "FAILED"
)

// Delivery holds the shipping details supplied with a purchase.
type Delivery struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes,omitempty"`
}

// Order records a confirmed redemption. Immutable once CONFIRMED.
type Order struct {
	ID            string      `json:"id"`
	ParticipantID string      `json:"participantId"`
	MerchID       string      `json:"merchId"`
	Quantity      int         `json:"quantity"`
	TotalCost     int         `json:"totalCost"`
	Delivery      Delivery    `json:"delivery"`
	Status        OrderStatus `json:"status"`
	ReferenceID   string      `json:"referenceId"` // ledger debit reference
	CreatedAt     time.Time   `json:"createdAt"`
}

// AuditRecord is emitted for every committed ledger mutation so
// external observability tooling can replay point movements.
type AuditRecord struct {
	ParticipantID string    `json:"participantId"`
	Delta         int       `json:"delta"`
	Reason        TxReason  `json:"reason"`
	ReferenceID   string    `json:"referenceId"`
	Balance       int       `json:"balance"`
	At            time.Time `json:"at"`
}

// Sanitized returns a copy of the event with correctness markers
// stripped from every answer, safe to hand to a participant.
func (e Event) Sanitized() Event {
	if e.Quiz == nil {
		return e
	}
	quiz := *e.Quiz
	quiz.Questions = make([]Question, len(e.Quiz.Questions))
	for i, q := range e.Quiz.Questions {
		sq := q
		sq.Answers = make([]Answer, len(q.Answers))
		for j, a := range q.Answers {
			sq.Answers[j] = Answer{ID: a.ID, Text: a.Text}
		}
		quiz.Questions[i] = sq
	}
	e.Quiz = &quiz
	return e
}
