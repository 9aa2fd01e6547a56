// Package dres contains the data model of the DRES evaluation server as seen
// by a participating client: users, evaluations, tasks, submissions and
// logs.
package dres

import "time"

// LoginRequest carries the credentials of a login call.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the authenticated identity returned by a login.
type User struct {
	// ID is the server-side user identifier.
	ID string `json:"id,omitempty"`
	// Username is the login name.
	Username string `json:"username"`
	// Role is the user's role (e.g. "PARTICIPANT").
	Role string `json:"role,omitempty"`
	// SessionID is the opaque token required by all session-scoped calls.
	SessionID string `json:"sessionId"`
}

// Evaluation summarizes a competition run visible to a session.
type Evaluation struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Type                string `json:"type,omitempty"`
	Status              string `json:"status,omitempty"`
	TemplateID          string `json:"templateId,omitempty"`
	TemplateDescription string `json:"templateDescription,omitempty"`
}

// TaskInfo describes the task currently running in an evaluation.
type TaskInfo struct {
	Name      string `json:"name"`
	TaskGroup string `json:"taskGroup,omitempty"`
	TaskType  string `json:"taskType,omitempty"`
	// Duration is the task duration in seconds.
	Duration int64 `json:"duration,omitempty"`
}

// Answer is a single typed answer: either a media item reference with an
// optional time range, or free text.
type Answer struct {
	Text                    string `json:"text,omitempty"`
	MediaItemName           string `json:"mediaItemName,omitempty"`
	MediaItemCollectionName string `json:"mediaItemCollectionName,omitempty"`
	// Start is the segment start in milliseconds.
	Start *int64 `json:"start,omitempty"`
	// End is the segment end in milliseconds.
	End *int64 `json:"end,omitempty"`
}

// AnswerSet groups answers that are judged together.
type AnswerSet struct {
	TaskID   string   `json:"taskId,omitempty"`
	TaskName string   `json:"taskName,omitempty"`
	Answers  []Answer `json:"answers"`
}

// Submission is the body of a submit call.
type Submission struct {
	AnswerSets []AnswerSet `json:"answerSets"`
}

// SubmissionStatus is the server's response to a submission.
type SubmissionStatus struct {
	Status      bool   `json:"status"`
	Submission  string `json:"submission,omitempty"`
	Description string `json:"description,omitempty"`
}

// SuccessStatus is the generic success/failure response.
type SuccessStatus struct {
	Status      bool   `json:"status"`
	Description string `json:"description,omitempty"`
}

// QueryResult is one ranked result shown to the user.
type QueryResult struct {
	Item    string   `json:"item"`
	Segment *int     `json:"segment,omitempty"`
	Frame   *int     `json:"frame,omitempty"`
	Score   *float64 `json:"score,omitempty"`
	Rank    *int     `json:"rank,omitempty"`
}

// QueryEvent is one user interaction event.
type QueryEvent struct {
	Timestamp int64  `json:"timestamp"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// QueryResultLog is the body of a result log call.
type QueryResultLog struct {
	Timestamp             int64         `json:"timestamp"`
	SortType              string        `json:"sortType"`
	ResultSetAvailability string        `json:"resultSetAvailability"`
	Results               []QueryResult `json:"results"`
	Events                []QueryEvent  `json:"events"`
}

// QueryEventLog is the body of an interaction log call.
type QueryEventLog struct {
	Timestamp int64        `json:"timestamp"`
	Events    []QueryEvent `json:"events"`
}

// CurrentTime is the server clock as reported by the status endpoint.
type CurrentTime struct {
	// TimeStamp is milliseconds since the Unix epoch.
	TimeStamp int64 `json:"timeStamp"`
}

// Time converts the server timestamp to a time.Time.
func (c CurrentTime) Time() time.Time {
	return time.UnixMilli(c.TimeStamp)
}

// LegacySubmission holds the query parameters of the deprecated v1 submit
// call, where the competition is inferred server-side from the session.
type LegacySubmission struct {
	Item  string
	Frame *int
	Text  string
}
