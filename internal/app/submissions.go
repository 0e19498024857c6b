package app

import (
	"github.com/samber/lo"

	"live-quiz-service/internal/domain"
)

// recordSubmissionLocked adds connID to the set of the active index. Resubmitting is a no-op.
func (r *Room) recordSubmissionLocked(connID string) (added bool, err error) {
	if r.phase != PhaseActive {
		return false, domain.ErrInvalidTransition
	}
	if !r.isMemberLocked(connID) {
		return false, domain.ErrNotMember
	}
	set := r.submitted[r.current]
	if _, dup := set[connID]; dup {
		return false, nil
	}
	set[connID] = struct{}{}
	return true, nil
}

// submissionCountLocked counts only submitters that still hold a member slot, so a connection
// replaced by a reconnect stops counting even before it disconnects.
func (r *Room) submissionCountLocked() domain.SubmissionStatus {
	status := domain.SubmissionStatus{TotalUsers: len(r.members)}
	set, ok := r.submitted[r.current]
	if !ok {
		return status
	}
	status.Submissions = lo.CountBy(r.members, func(m domain.Member) bool {
		_, submitted := set[m.ConnectionID]
		return submitted
	})
	return status
}

// purgeSubmissionsLocked removes connID from every index and reports whether it had answered
// the active one.
func (r *Room) purgeSubmissionsLocked(connID string) bool {
	hadCurrent := false
	for index, set := range r.submitted {
		if _, ok := set[connID]; !ok {
			continue
		}
		delete(set, connID)
		if index == r.current {
			hadCurrent = true
		}
	}
	return hadCurrent
}
