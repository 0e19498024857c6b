package app

import "live-quiz-service/internal/domain"

// Phase is where a room's question timeline stands.
type Phase string

const (
	// PhaseNotStarted holds from room creation until the host starts the quiz. The active index is -1.
	PhaseNotStarted Phase = "not_started"
	// PhaseActive means a question is on screen. Only next, prev and end move the index from here.
	PhaseActive Phase = "active"
	// PhaseFinished is terminal. It is entered by an explicit end, never by running out of questions.
	PhaseFinished Phase = "finished"
)

func (r *Room) startLocked() (int, error) {
	if r.phase != PhaseNotStarted {
		return r.current, domain.ErrInvalidTransition
	}
	if len(r.questions) == 0 {
		return r.current, domain.ErrNoQuestions
	}
	r.phase = PhaseActive
	r.activateLocked(0)
	return r.current, nil
}

func (r *Room) nextLocked() (int, error) {
	if r.phase != PhaseActive || r.current+1 >= len(r.questions) {
		return r.current, domain.ErrInvalidTransition
	}
	r.activateLocked(r.current + 1)
	return r.current, nil
}

func (r *Room) prevLocked() (int, error) {
	if r.phase != PhaseActive || r.current-1 < 0 {
		return r.current, domain.ErrInvalidTransition
	}
	r.activateLocked(r.current - 1)
	return r.current, nil
}

// endLocked finishes the quiz from any phase. Ending a finished room changes nothing.
func (r *Room) endLocked() {
	r.phase = PhaseFinished
}

// activateLocked moves the cursor and makes sure the submission set for the new index exists
// before anything is broadcast about it.
func (r *Room) activateLocked(index int) {
	r.current = index
	if _, ok := r.submitted[index]; !ok {
		r.submitted[index] = make(map[string]struct{})
	}
}
