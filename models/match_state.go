package models

import (
	"fmt"
	"strings"
	"time"
)

type MatchEvent string

const (
	EventStart           MatchEvent = "start"
	EventAwaitScores     MatchEvent = "await scores for"
	EventRecordResult    MatchEvent = "record result for"
	EventConfirm         MatchEvent = "confirm"
	EventDispute         MatchEvent = "dispute"
	EventResolve         MatchEvent = "resolve dispute on"
	EventSetParticipants MatchEvent = "set participants on"
	EventSetBye          MatchEvent = "set bye on"
	EventPlace           MatchEvent = "place participant on"
	EventCancel          MatchEvent = "cancel"
	EventReschedule      MatchEvent = "reschedule"
)

// transitionRule lists the states an event may fire from and the states it
// may lead to. An empty to-set means the event keeps the current status.
type transitionRule struct {
	from []MatchStatus
	to   []MatchStatus
}

var matchTransitions = map[MatchEvent]transitionRule{
	EventStart: {
		from: []MatchStatus{MatchStatusScheduled},
		to:   []MatchStatus{MatchStatusInProgress},
	},
	EventAwaitScores: {
		from: []MatchStatus{MatchStatusInProgress},
		to:   []MatchStatus{MatchStatusAwaitingScores},
	},
	EventRecordResult: {
		from: []MatchStatus{MatchStatusInProgress, MatchStatusAwaitingScores},
		to:   []MatchStatus{MatchStatusAwaitingConfirmation},
	},
	EventConfirm: {
		from: []MatchStatus{MatchStatusAwaitingConfirmation, MatchStatusDisputed},
		to:   []MatchStatus{MatchStatusCompleted},
	},
	EventDispute: {
		from: []MatchStatus{MatchStatusAwaitingConfirmation, MatchStatusCompleted},
		to:   []MatchStatus{MatchStatusDisputed},
	},
	EventResolve: {
		from: []MatchStatus{MatchStatusDisputed},
		to:   []MatchStatus{MatchStatusCompleted, MatchStatusCanceled, MatchStatusScheduled},
	},
	EventSetParticipants: {
		from: []MatchStatus{MatchStatusPending, MatchStatusScheduled, MatchStatusBye},
		to:   []MatchStatus{MatchStatusPending, MatchStatusScheduled, MatchStatusBye},
	},
	EventSetBye: {
		from: []MatchStatus{MatchStatusPending, MatchStatusScheduled, MatchStatusBye},
		to:   []MatchStatus{MatchStatusBye},
	},
	EventPlace: {
		from: []MatchStatus{MatchStatusPending, MatchStatusScheduled},
	},
	EventCancel: {
		from: []MatchStatus{
			MatchStatusPending, MatchStatusScheduled, MatchStatusInProgress, MatchStatusAwaitingScores,
			MatchStatusAwaitingConfirmation, MatchStatusDisputed, MatchStatusBye,
		},
		to: []MatchStatus{MatchStatusCanceled},
	},
	EventReschedule: {
		from: []MatchStatus{MatchStatusScheduled, MatchStatusPending},
	},
}

func containsStatus(set []MatchStatus, s MatchStatus) bool {
	for _, st := range set {
		if st == s {
			return true
		}
	}
	return false
}

// CanFire reports whether event is permitted while a match is in status from.
func CanFire(event MatchEvent, from MatchStatus) bool {
	rule, ok := matchTransitions[event]
	return ok && containsStatus(rule.from, from)
}

// Targets returns the statuses event may lead to. Nil means the status is kept.
func Targets(event MatchEvent) []MatchStatus {
	rule := matchTransitions[event]
	if len(rule.to) == 0 {
		return nil
	}
	out := make([]MatchStatus, len(rule.to))
	copy(out, rule.to)
	return out
}

func (m *Match) guard(event MatchEvent) error {
	if !CanFire(event, m.Status) {
		return &TransitionError{MatchID: m.ID, Event: event, Current: m.Status}
	}
	return nil
}

func (m *Match) enter(event MatchEvent, target MatchStatus) {
	rule := matchTransitions[event]
	if len(rule.to) > 0 && !containsStatus(rule.to, target) {
		// Rules and methods are defined together; reaching this is a programming error.
		panic(fmt.Sprintf("match transition %q to %s is not in the table", event, target))
	}
	if target != "" {
		m.Status = target
	}
	m.UpdatedAt = m.now()
}

func (m *Match) appendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if m.ModeratorNotes == "" {
		m.ModeratorNotes = note
		return
	}
	m.ModeratorNotes += "\n" + note
}

func (m *Match) setMeta(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// slotOf returns 1 or 2 for the slot holding id, 0 otherwise.
func (m *Match) slotOf(id string) int {
	switch {
	case m.Participant1ID != nil && *m.Participant1ID == id:
		return 1
	case m.Participant2ID != nil && *m.Participant2ID == id:
		return 2
	}
	return 0
}

func (m *Match) typeOfSlot(slot int) *ParticipantType {
	var t *ParticipantType
	switch slot {
	case 1:
		t = m.Participant1Type
	case 2:
		t = m.Participant2Type
	}
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (m *Match) setWinner(winnerID *string) error {
	if winnerID == nil {
		m.WinnerID = nil
		m.WinnerType = nil
		return nil
	}
	slot := m.slotOf(*winnerID)
	if slot == 0 {
		return fmt.Errorf("%w: winner %s is not a participant of match %s", ErrInvalidParticipant, *winnerID, m.ID)
	}
	id := *winnerID
	m.WinnerID = &id
	m.WinnerType = m.typeOfSlot(slot)
	return nil
}

// Start moves a scheduled match into play.
func (m *Match) Start() error {
	if err := m.guard(EventStart); err != nil {
		return err
	}
	now := m.now()
	m.ActualStartTime = &now
	m.enter(EventStart, MatchStatusInProgress)
	return nil
}

// AwaitScores marks that play has ended and scores are expected.
func (m *Match) AwaitScores() error {
	if err := m.guard(EventAwaitScores); err != nil {
		return err
	}
	m.enter(EventAwaitScores, MatchStatusAwaitingScores)
	return nil
}

// ResultInput carries a submitted match result. Nil proof URLs leave the stored
// proofs untouched. ReportedBy is filled by the service from the acting user.
type ResultInput struct {
	WinnerID   *string `json:"winner_id"`
	Score1     *int    `json:"participant1_score"`
	Score2     *int    `json:"participant2_score"`
	ProofURL1  *string `json:"result_proof_url_p1"`
	ProofURL2  *string `json:"result_proof_url_p2"`
	ReportedBy string  `json:"-"`
}

func (m *Match) RecordResult(in ResultInput) error {
	if err := m.guard(EventRecordResult); err != nil {
		return err
	}
	if err := m.setWinner(in.WinnerID); err != nil {
		return err
	}
	m.Participant1Score = copyInt(in.Score1)
	m.Participant2Score = copyInt(in.Score2)
	if in.ProofURL1 != nil {
		m.ResultProofURLP1 = copyString(in.ProofURL1)
	}
	if in.ProofURL2 != nil {
		m.ResultProofURLP2 = copyString(in.ProofURL2)
	}
	if in.ReportedBy != "" {
		m.setMeta("reported_by", in.ReportedBy)
	} else if m.Metadata != nil {
		delete(m.Metadata, "reported_by")
	}
	now := m.now()
	m.ActualEndTime = &now
	m.IsConfirmed = false
	m.enter(EventRecordResult, MatchStatusAwaitingConfirmation)
	return nil
}

// ConfirmResult accepts the recorded result. Whether confirmerID may confirm is
// decided by the caller.
func (m *Match) ConfirmResult(confirmerID string) error {
	if err := m.guard(EventConfirm); err != nil {
		return err
	}
	if confirmerID != "" {
		m.setMeta("confirmed_by", confirmerID)
	}
	m.IsConfirmed = true
	m.enter(EventConfirm, MatchStatusCompleted)
	return nil
}

func (m *Match) DisputeResult(reporterID, reason string) error {
	if err := m.guard(EventDispute); err != nil {
		return err
	}
	if strings.TrimSpace(reporterID) == "" {
		return fmt.Errorf("%w: dispute reporter", ErrMissingArgument)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: dispute reason", ErrMissingArgument)
	}
	m.setMeta("dispute", map[string]any{
		"reporter_id": reporterID,
		"reason":      reason,
		"reported_at": m.now().Format(time.RFC3339),
	})
	m.IsConfirmed = false
	m.enter(EventDispute, MatchStatusDisputed)
	return nil
}

// ResolveDispute closes a dispute. An empty target means COMPLETED; SCHEDULED
// orders a replay and CANCELED voids the match.
func (m *Match) ResolveDispute(resolvedWinnerID *string, adminNotes string, target MatchStatus) error {
	if err := m.guard(EventResolve); err != nil {
		return err
	}
	if target == "" {
		target = MatchStatusCompleted
	}
	if !containsStatus(matchTransitions[EventResolve].to, target) {
		return fmt.Errorf("%w: dispute cannot resolve to %s", ErrInvalidArgument, target)
	}
	if err := m.setWinner(resolvedWinnerID); err != nil {
		return err
	}
	if target == MatchStatusScheduled {
		m.Participant1Score = nil
		m.Participant2Score = nil
		m.ActualStartTime = nil
		m.ActualEndTime = nil
	}
	m.IsConfirmed = true
	m.appendNote(adminNotes)
	m.enter(EventResolve, target)
	return nil
}

// SetParticipants assigns both slots and derives the follow-up state.
func (m *Match) SetParticipants(p1ID *string, p1Type *ParticipantType, p2ID *string, p2Type *ParticipantType) error {
	if err := m.guard(EventSetParticipants); err != nil {
		return err
	}
	switch {
	case p1ID != nil && p2ID == nil:
		m.Participant1ID, m.Participant1Type = copyString(p1ID), copyType(p1Type)
		m.Participant2ID, m.Participant2Type = nil, nil
		return m.SetAsBye(*p1ID, p1Type)
	case p1ID == nil && p2ID != nil:
		m.Participant1ID, m.Participant1Type = nil, nil
		m.Participant2ID, m.Participant2Type = copyString(p2ID), copyType(p2Type)
		return m.SetAsBye(*p2ID, p2Type)
	}

	previous := m.Status
	m.Participant1ID, m.Participant1Type = copyString(p1ID), copyType(p1Type)
	m.Participant2ID, m.Participant2Type = copyString(p2ID), copyType(p2Type)

	if p1ID == nil {
		m.WinnerID, m.WinnerType = nil, nil
		m.IsConfirmed = false
		m.enter(EventSetParticipants, MatchStatusPending)
		return nil
	}

	target := previous
	if previous == MatchStatusBye || previous == MatchStatusPending {
		target = MatchStatusScheduled
	}
	if previous == MatchStatusBye {
		m.WinnerID, m.WinnerType = nil, nil
		m.IsConfirmed = false
		m.ActualStartTime = nil
		m.ActualEndTime = nil
	}
	m.enter(EventSetParticipants, target)
	return nil
}

// SetAsBye advances winnerID without play. The winner keeps its slot if it has
// one, otherwise takes the first free slot (slot 1 by default).
func (m *Match) SetAsBye(winnerID string, winnerType *ParticipantType) error {
	if err := m.guard(EventSetBye); err != nil {
		return err
	}
	if strings.TrimSpace(winnerID) == "" {
		return fmt.Errorf("%w: bye winner", ErrMissingArgument)
	}
	slot := m.slotOf(winnerID)
	if slot == 0 {
		slot = 1
		if m.Participant1ID != nil && m.Participant2ID == nil {
			slot = 2
		}
	}
	id := winnerID
	wt := copyType(winnerType)
	if slot == 1 {
		m.Participant1ID, m.Participant1Type = &id, wt
		m.Participant2ID, m.Participant2Type = nil, nil
	} else {
		m.Participant2ID, m.Participant2Type = &id, wt
		m.Participant1ID, m.Participant1Type = nil, nil
	}
	winner := winnerID
	m.WinnerID = &winner
	m.WinnerType = copyType(winnerType)
	m.IsConfirmed = true
	now := m.now()
	if m.ActualStartTime == nil {
		m.ActualStartTime = &now
	}
	if m.ActualEndTime == nil {
		m.ActualEndTime = &now
	}
	m.enter(EventSetBye, MatchStatusBye)
	return nil
}

// PlaceParticipant writes a single slot without deriving a new state. It is
// used while the other slot's feeder is still being played.
func (m *Match) PlaceParticipant(slot int, id *string, typ *ParticipantType) error {
	if err := m.guard(EventPlace); err != nil {
		return err
	}
	switch slot {
	case 1:
		m.Participant1ID, m.Participant1Type = copyString(id), copyType(typ)
	case 2:
		m.Participant2ID, m.Participant2Type = copyString(id), copyType(typ)
	default:
		return fmt.Errorf("%w: slot %d", ErrInvalidArgument, slot)
	}
	m.enter(EventPlace, "")
	return nil
}

func (m *Match) CancelMatch(reason string) error {
	if err := m.guard(EventCancel); err != nil {
		return err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		m.appendNote("Canceled: " + reason)
	}
	m.enter(EventCancel, MatchStatusCanceled)
	return nil
}

func (m *Match) UpdateScheduledTime(newTime time.Time) error {
	if err := m.guard(EventReschedule); err != nil {
		return err
	}
	now := m.now()
	if !newTime.After(now) {
		return fmt.Errorf("%w: %s is not after %s", ErrInvalidSchedule, newTime.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	t := newTime.UTC()
	m.ScheduledTime = &t
	m.enter(EventReschedule, "")
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func copyType(t *ParticipantType) *ParticipantType {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
