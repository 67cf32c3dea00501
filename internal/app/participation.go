package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"event-rewards-service/internal/domain"
)

// EventCatalog supplies published events. The catalog is owned by the
// surrounding system; the core never mutates it.
type EventCatalog interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// ParticipationRepository abstracts how participation aggregates are
// stored (in-memory, Redis write-through, etc).
type ParticipationRepository interface {
	GetOrCreate(ctx context.Context, participantID, eventID string) (*Participation, error)
	Get(ctx context.Context, participantID, eventID string) (*Participation, bool, error)
	ListByParticipant(ctx context.Context, participantID string) ([]*Participation, error)
	// Save persists a committed snapshot. It takes the record, not the
	// aggregate, so callers may invoke it while holding the aggregate's
	// lock.
	Save(ctx context.Context, rec domain.ParticipationRecord) error
}

// Participation is the live aggregate for one (participant, event)
// pair. All mutation goes through ParticipationService, which holds the
// aggregate's lock for the duration of each operation so concurrent
// calls for the same pair serialize while other pairs proceed freely.
type Participation struct {
	mu  sync.Mutex
	rec domain.ParticipationRecord
	now func() time.Time
}

func NewParticipation(participantID, eventID string) *Participation {
	return NewParticipationWithClock(participantID, eventID, time.Now)
}

// NewParticipationWithClock allows deterministic timestamps in tests.
func NewParticipationWithClock(participantID, eventID string, now func() time.Time) *Participation {
	return &Participation{
		rec: domain.ParticipationRecord{
			ParticipantID: participantID,
			EventID:       eventID,
			State:         domain.StateInProgress,
			Answers:       make(map[string]string),
			StartedAt:     now(),
		},
		now: now,
	}
}

// Rehydrate rebuilds an aggregate from a persisted snapshot.
func Rehydrate(rec domain.ParticipationRecord) *Participation {
	if rec.Answers == nil {
		rec.Answers = make(map[string]string)
	}
	return &Participation{rec: rec, now: time.Now}
}

// Snapshot returns a copy of the committed record.
func (p *Participation) Snapshot() domain.ParticipationRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Participation) snapshotLocked() domain.ParticipationRecord {
	rec := p.rec
	rec.Answers = make(map[string]string, len(p.rec.Answers))
	for q, a := range p.rec.Answers {
		rec.Answers[q] = a
	}
	return rec
}

// ParticipationService orchestrates a participant's progress through an
// event: starting, recording answers, scoring the submission, and
// crediting the ledger on a pass.
type ParticipationService struct {
	events  EventCatalog
	records ParticipationRepository
	ledger  Ledger
}

func NewParticipationService(events EventCatalog, records ParticipationRepository, ledger Ledger) *ParticipationService {
	return &ParticipationService{events: events, records: records, ledger: ledger}
}

// EventListing pairs a sanitized event with the caller's progress.
type EventListing struct {
	Event  domain.Event              `json:"event"`
	State  domain.ParticipationState `json:"state"`
	Score  int                       `json:"score,omitempty"`
	Passed bool                      `json:"passed,omitempty"`
}

// rewardReference derives the idempotency key for an event reward so a
// replayed submit can never credit twice.
func rewardReference(eventID, participantID string) string {
	return fmt.Sprintf("event:%s:%s", eventID, participantID)
}

// Start opens (or re-opens) the participant's record for an event.
// Idempotent: a second start returns the existing record unchanged and
// never resets progress, even if the event has since been deactivated.
// The returned event has correctness markers stripped from its answers.
func (s *ParticipationService) Start(ctx context.Context, participantID, eventID string) (domain.Event, domain.ParticipationRecord, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, domain.ParticipationRecord{}, err
	}

	if p, ok, err := s.records.Get(ctx, participantID, eventID); err != nil {
		return domain.Event{}, domain.ParticipationRecord{}, err
	} else if ok {
		return event.Sanitized(), p.Snapshot(), nil
	}

	if !event.IsActive {
		return domain.Event{}, domain.ParticipationRecord{}, domain.ErrEventNotFound
	}

	p, err := s.records.GetOrCreate(ctx, participantID, eventID)
	if err != nil {
		return domain.Event{}, domain.ParticipationRecord{}, err
	}
	rec := p.Snapshot()
	if err := s.records.Save(ctx, rec); err != nil {
		return domain.Event{}, domain.ParticipationRecord{}, err
	}
	return event.Sanitized(), rec, nil
}

// RecordAnswer upserts the participant's choice for one question. A
// later call for the same question overwrites the earlier choice.
func (s *ParticipationService) RecordAnswer(ctx context.Context, participantID, eventID, questionID, answerID string) (domain.ParticipationRecord, error) {
	p, ok, err := s.records.Get(ctx, participantID, eventID)
	if err != nil {
		return domain.ParticipationRecord{}, err
	}
	if !ok {
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec.State != domain.StateInProgress {
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}
	p.rec.Answers[questionID] = answerID
	rec := p.snapshotLocked()
	if err := s.records.Save(ctx, rec); err != nil {
		return domain.ParticipationRecord{}, err
	}
	return rec, nil
}

// SubmitQuiz merges the submitted answers into the record, scores them,
// and on a pass credits the event's points exactly once. A duplicate
// submit returns the stored outcome without rescoring or re-crediting.
func (s *ParticipationService) SubmitQuiz(ctx context.Context, participantID, eventID string, answers map[string]string) (domain.QuizResult, domain.ParticipationRecord, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.QuizResult{}, domain.ParticipationRecord{}, err
	}
	if event.Quiz == nil {
		return domain.QuizResult{}, domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p, ok, err := s.records.Get(ctx, participantID, eventID)
	if err != nil {
		return domain.QuizResult{}, domain.ParticipationRecord{}, err
	}
	if !ok {
		return domain.QuizResult{}, domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec.State != domain.StateInProgress {
		// Already submitted: surface the stored result, not a rescore.
		rec := p.snapshotLocked()
		return domain.QuizResult{
			CorrectCount:   rec.CorrectCount,
			TotalQuestions: len(event.Quiz.Questions),
			ScorePercent:   rec.Score,
			Passed:         rec.Passed,
		}, rec, nil
	}

	for questionID, answerID := range answers {
		p.rec.Answers[questionID] = answerID
	}

	result, err := ScoreQuiz(event.Quiz, p.rec.Answers)
	if err != nil {
		return domain.QuizResult{}, domain.ParticipationRecord{}, err
	}

	// Credit before committing the transition so an infra failure leaves
	// the record IN_PROGRESS and the submit retryable. The reference id
	// makes the retry's credit a no-op if the first one landed.
	if result.Passed {
		if _, err := s.ledger.Credit(ctx, participantID, event.Points, domain.ReasonEventReward, rewardReference(eventID, participantID)); err != nil {
			return domain.QuizResult{}, domain.ParticipationRecord{}, err
		}
	}

	p.rec.Score = result.ScorePercent
	p.rec.CorrectCount = result.CorrectCount
	p.rec.Passed = result.Passed
	p.rec.SubmittedAt = p.now()
	if result.Passed {
		p.rec.State = domain.StateCompleted
	} else {
		p.rec.State = domain.StateQuizSubmitted
	}

	rec := p.snapshotLocked()
	if err := s.records.Save(ctx, rec); err != nil {
		return domain.QuizResult{}, domain.ParticipationRecord{}, err
	}
	return result, rec, nil
}

// Complete finishes a non-quiz event (minigame, quest, photo) and
// credits its points. Idempotent: completing twice keeps the first
// outcome and credits at most once.
func (s *ParticipationService) Complete(ctx context.Context, participantID, eventID string) (domain.ParticipationRecord, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.ParticipationRecord{}, err
	}
	if event.Type == domain.EventTypeQuiz {
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p, ok, err := s.records.Get(ctx, participantID, eventID)
	if err != nil {
		return domain.ParticipationRecord{}, err
	}
	if !ok {
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec.State != domain.StateInProgress {
		if p.rec.State == domain.StateCompleted || p.rec.State.Terminal() {
			return p.snapshotLocked(), nil
		}
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	if _, err := s.ledger.Credit(ctx, participantID, event.Points, domain.ReasonEventReward, rewardReference(eventID, participantID)); err != nil {
		return domain.ParticipationRecord{}, err
	}

	p.rec.Passed = true
	p.rec.Score = 100
	p.rec.SubmittedAt = p.now()
	p.rec.State = domain.StateCompleted

	rec := p.snapshotLocked()
	if err := s.records.Save(ctx, rec); err != nil {
		return domain.ParticipationRecord{}, err
	}
	return rec, nil
}

// SubmitFeedback records the participant's rating and moves the record
// to its terminal state. Valid only after COMPLETED.
func (s *ParticipationService) SubmitFeedback(ctx context.Context, participantID, eventID string, rating int, comment string) (domain.ParticipationRecord, error) {
	return s.finishFeedback(ctx, participantID, eventID, domain.StateFeedbackGiven, rating, comment)
}

// SkipFeedback closes the record without a rating. Valid only after COMPLETED.
func (s *ParticipationService) SkipFeedback(ctx context.Context, participantID, eventID string) (domain.ParticipationRecord, error) {
	return s.finishFeedback(ctx, participantID, eventID, domain.StateFeedbackSkipped, 0, "")
}

func (s *ParticipationService) finishFeedback(ctx context.Context, participantID, eventID string, terminal domain.ParticipationState, rating int, comment string) (domain.ParticipationRecord, error) {
	p, ok, err := s.records.Get(ctx, participantID, eventID)
	if err != nil {
		return domain.ParticipationRecord{}, err
	}
	if !ok {
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec.State != domain.StateCompleted {
		return domain.ParticipationRecord{}, domain.ErrInvalidState
	}

	p.rec.State = terminal
	p.rec.Rating = rating
	p.rec.Comment = comment
	p.rec.FeedbackAt = p.now()

	rec := p.snapshotLocked()
	if err := s.records.Save(ctx, rec); err != nil {
		return domain.ParticipationRecord{}, err
	}
	return rec, nil
}

// GetEvent returns one sanitized event with the caller's progress, if any.
func (s *ParticipationService) GetEvent(ctx context.Context, participantID, eventID string) (EventListing, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return EventListing{}, err
	}
	listing := EventListing{Event: event.Sanitized(), State: domain.StateNotStarted}
	if p, ok, err := s.records.Get(ctx, participantID, eventID); err != nil {
		return EventListing{}, err
	} else if ok {
		rec := p.Snapshot()
		listing.State = rec.State
		listing.Score = rec.Score
		listing.Passed = rec.Passed
	}
	return listing, nil
}

// ListEvents returns the active catalog with the caller's per-event state.
func (s *ParticipationService) ListEvents(ctx context.Context, participantID string) ([]EventListing, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]EventListing, 0, len(events))
	for _, event := range events {
		if !event.IsActive {
			continue
		}
		listing := EventListing{Event: event.Sanitized(), State: domain.StateNotStarted}
		if p, ok, err := s.records.Get(ctx, participantID, event.ID); err != nil {
			return nil, err
		} else if ok {
			rec := p.Snapshot()
			listing.State = rec.State
			listing.Score = rec.Score
			listing.Passed = rec.Passed
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// CompletedEvents lists the caller's records that reached COMPLETED or
// a terminal feedback state, newest submission first.
func (s *ParticipationService) CompletedEvents(ctx context.Context, participantID string) ([]domain.ParticipationRecord, error) {
	parts, err := s.records.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	records := make([]domain.ParticipationRecord, 0, len(parts))
	for _, p := range parts {
		rec := p.Snapshot()
		if rec.State == domain.StateCompleted || rec.State.Terminal() {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SubmittedAt.After(records[j].SubmittedAt)
	})
	return records, nil
}
