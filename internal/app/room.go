package app

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"live-quiz-service/internal/domain"
)

// Room is one live quiz. Every field below mu is owned by whoever holds mu; methods with the
// Locked suffix expect the caller to hold it.
type Room struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	members     []domain.Member
	questions   []domain.QuestionPayload
	current     int
	phase       Phase
	submitted   map[int]map[string]struct{}
	hostSubject string
}

// NewRoom is exported for the room stores in infra.
func NewRoom(id string) *Room {
	return newRoomWithClock(id, time.Now)
}

func newRoomWithClock(id string, now func() time.Time) *Room {
	return &Room{
		id:        id,
		createdAt: now(),
		current:   -1,
		phase:     PhaseNotStarted,
		submitted: make(map[int]map[string]struct{}),
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// joinLocked occupies the name slot for connID. A name already present keeps its position and
// takes the new connection id; previous is the id it had before. A connection that switches
// names gives up its old slot.
func (r *Room) joinLocked(name, connID string) (reconnected bool, previous string) {
	r.members = lo.Reject(r.members, func(m domain.Member, _ int) bool {
		return m.ConnectionID == connID && m.Name != name
	})

	_, idx, found := lo.FindIndexOf(r.members, func(m domain.Member) bool {
		return m.Name == name
	})
	if found {
		previous = r.members[idx].ConnectionID
		r.members[idx].ConnectionID = connID
		return true, previous
	}

	r.members = append(r.members, domain.Member{Name: name, ConnectionID: connID})
	return false, ""
}

// removeConnectionLocked drops connID from the member list and from every submission set.
func (r *Room) removeConnectionLocked(connID string) (member domain.Member, wasMember bool, hadSubmission bool) {
	member, idx, wasMember := lo.FindIndexOf(r.members, func(m domain.Member) bool {
		return m.ConnectionID == connID
	})
	if wasMember {
		r.members = append(r.members[:idx], r.members[idx+1:]...)
	}
	hadSubmission = r.purgeSubmissionsLocked(connID)
	return member, wasMember, hadSubmission
}

func (r *Room) isMemberLocked(connID string) bool {
	return lo.ContainsBy(r.members, func(m domain.Member) bool {
		return m.ConnectionID == connID
	})
}

// membersLocked returns a copy safe to hand to the dispatcher.
func (r *Room) membersLocked() []domain.Member {
	out := make([]domain.Member, len(r.members))
	copy(out, r.members)
	return out
}

// initQuestionsLocked replaces the question list while the quiz has not started.
func (r *Room) initQuestionsLocked(questions []domain.QuestionPayload) error {
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}
	if r.phase != PhaseNotStarted {
		return domain.ErrInvalidTransition
	}
	r.questions = make([]domain.QuestionPayload, len(questions))
	copy(r.questions, questions)
	r.current = -1
	r.submitted = make(map[int]map[string]struct{})
	return nil
}

func (r *Room) questionLocked(index int) domain.QuestionPayload {
	return r.questions[index].Normalize()
}

// Snapshot returns a consistent read-only view of the room.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.submissionCountLocked()
	return domain.RoomSnapshot{
		RoomID:      r.id,
		Phase:       string(r.phase),
		Index:       r.current,
		Questions:   len(r.questions),
		Members:     r.membersLocked(),
		Submissions: status.Submissions,
	}
}
