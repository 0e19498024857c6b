package domain

import "encoding/json"

// Member is one occupied name slot in a room.
type Member struct {
	Name         string `json:"name"`
	ConnectionID string `json:"connectionId"`
}

// Identity is what the transport knows about a connection before it joins anything.
// Subject and Admin come from the external admin auth collaborator; both are zero for participants.
type Identity struct {
	Subject string
	Admin   bool
}

// QuestionPayload is a question as sent by the host. The engine only indexes into the list
// and passes each payload through verbatim.
type QuestionPayload map[string]any

// Normalize returns a shallow copy with a stable id and a non-null options list.
func (q QuestionPayload) Normalize() QuestionPayload {
	out := make(QuestionPayload, len(q)+2)
	for k, v := range q {
		out[k] = v
	}
	if id, ok := q["_id"]; ok && id != nil && id != "" {
		out["id"] = id
	}
	if opts, ok := q["options"]; !ok || opts == nil {
		out["options"] = []any{}
	}
	return out
}

// UserPresence is the payload of user-joined and user-left.
type UserPresence struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// ShowQuestion is the payload of show-question.
type ShowQuestion struct {
	Index    int             `json:"index"`
	Question QuestionPayload `json:"question"`
}

// SubmissionStatus is the payload of submission-status.
type SubmissionStatus struct {
	TotalUsers  int `json:"totalUsers"`
	Submissions int `json:"submissions"`
}

// Ack answers a request that carried an id.
type Ack struct {
	Success bool `json:"success"`
}

// Connected greets a freshly upgraded connection with the id the engine knows it by.
type Connected struct {
	ConnectionID string `json:"connectionId"`
}

// RoomSnapshot is a read-only view of a room for operators.
type RoomSnapshot struct {
	RoomID      string   `json:"roomId"`
	Phase       string   `json:"phase"`
	Index       int      `json:"index"`
	Questions   int      `json:"questions"`
	Members     []Member `json:"members"`
	Submissions int      `json:"submissions"`
}

// Question mirrors a stored quiz question document.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Question      string   `json:"question" yaml:"question"`
	Points        int      `json:"points" yaml:"points"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer []int    `json:"correctAnswer" yaml:"correctAnswer"`
}

// Quiz is a stored quiz with its ordered questions.
type Quiz struct {
	ID        string     `json:"id" yaml:"id"`
	Code      string     `json:"code" yaml:"code"`
	Name      string     `json:"name" yaml:"name"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Payloads converts stored questions into what participants may see; correct answers are left out.
func (q Quiz) Payloads() ([]QuestionPayload, error) {
	out := make([]QuestionPayload, 0, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = nil
		raw, err := json.Marshal(question)
		if err != nil {
			return nil, err
		}
		var payload QuestionPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		delete(payload, "correctAnswer")
		payload["questionNumber"] = i + 1
		out = append(out, payload)
	}
	return out, nil
}
