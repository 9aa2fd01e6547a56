// Package memory provides an in-memory implementation of the DRES outbound
// port for tests and local development.
package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/Sentinel-Gate/dres-client/internal/domain/dres"
	"github.com/Sentinel-Gate/dres-client/internal/port/outbound"
)

// Compile-time check that DRESServer implements outbound.DRESAPI.
var _ outbound.DRESAPI = (*DRESServer)(nil)

// RecordedSubmission is a submission received by the in-memory server.
type RecordedSubmission struct {
	Session      string
	EvaluationID string
	Submission   dres.Submission
}

// RecordedLegacySubmission is a v1 submission received by the in-memory server.
type RecordedLegacySubmission struct {
	Session    string
	Submission dres.LegacySubmission
}

// RecordedResultLog is a result log received by the in-memory server.
type RecordedResultLog struct {
	Session string
	Log     dres.QueryResultLog
}

// RecordedEventLog is an interaction log received by the in-memory server.
type RecordedEventLog struct {
	Session string
	Log     dres.QueryEventLog
}

// DRESServer is a thread-safe in-memory stand-in for a DRES server.
// It issues session ids on login, scopes evaluations by session and
// records everything it receives.
type DRESServer struct {
	mu          sync.Mutex
	accounts    map[string]string // username -> password
	sessions    map[string]string // session id -> username
	evaluations []dres.Evaluation
	tasks       map[string]dres.TaskInfo
	failures    map[string]error
	calls       int

	submissions       []RecordedSubmission
	legacySubmissions []RecordedLegacySubmission
	resultLogs        []RecordedResultLog
	eventLogs         []RecordedEventLog
	serverTime        int64
}

// NewDRESServer creates an empty in-memory server.
func NewDRESServer() *DRESServer {
	return &DRESServer{
		accounts: make(map[string]string),
		sessions: make(map[string]string),
		tasks:    make(map[string]dres.TaskInfo),
		failures: make(map[string]error),
	}
}

// AddAccount registers a user that may log in.
func (s *DRESServer) AddAccount(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = password
}

// SetEvaluations replaces the evaluations returned to every session.
func (s *DRESServer) SetEvaluations(evaluations ...dres.Evaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append([]dres.Evaluation(nil), evaluations...)
}

// SetTask sets the current task of an evaluation.
func (s *DRESServer) SetTask(evaluationID string, task dres.TaskInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[evaluationID] = task
}

// SetServerTime sets the timestamp returned by ServerTime.
func (s *DRESServer) SetServerTime(millis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverTime = millis
}

// FailWith makes every subsequent call of operation return err.
// Operation names match the HTTP adapter: "login", "list_evaluations",
// "current_task", "submit", "log_results", "log_query_events",
// "server_time", "legacy_login", "legacy_submit". A nil err clears it.
func (s *DRESServer) FailWith(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, operation)
		return
	}
	s.failures[operation] = err
}

// Calls returns the number of calls received, including failed ones.
func (s *DRESServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Submissions returns a copy of the recorded submissions.
func (s *DRESServer) Submissions() []RecordedSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedSubmission(nil), s.submissions...)
}

// LegacySubmissions returns a copy of the recorded v1 submissions.
func (s *DRESServer) LegacySubmissions() []RecordedLegacySubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedLegacySubmission(nil), s.legacySubmissions...)
}

// ResultLogs returns a copy of the recorded result logs.
func (s *DRESServer) ResultLogs() []RecordedResultLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedResultLog(nil), s.resultLogs...)
}

// EventLogs returns a copy of the recorded interaction logs.
func (s *DRESServer) EventLogs() []RecordedEventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedEventLog(nil), s.eventLogs...)
}

// Login issues a new session for a registered account.
func (s *DRESServer) Login(ctx context.Context, req dres.LoginRequest) (*dres.User, error) {
	return s.login(ctx, "login", req)
}

// LegacyLogin behaves like Login.
//
// Deprecated: use Login.
func (s *DRESServer) LegacyLogin(ctx context.Context, req dres.LoginRequest) (*dres.User, error) {
	return s.login(ctx, "legacy_login", req)
}

func (s *DRESServer) login(ctx context.Context, op string, req dres.LoginRequest) (*dres.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, op); err != nil {
		return nil, err
	}

	password, ok := s.accounts[req.Username]
	if !ok || password != req.Password {
		return nil, &dres.RemoteError{Operation: op, StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	}

	session := uuid.NewString()
	s.sessions[session] = req.Username
	return &dres.User{
		ID:        "user-" + req.Username,
		Username:  req.Username,
		Role:      "PARTICIPANT",
		SessionID: session,
	}, nil
}

// ListEvaluations returns all configured evaluations.
func (s *DRESServer) ListEvaluations(ctx context.Context, session string) ([]dres.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginSession(ctx, "list_evaluations", session); err != nil {
		return nil, err
	}
	return append([]dres.Evaluation(nil), s.evaluations...), nil
}

// CurrentTask returns the task set with SetTask.
func (s *DRESServer) CurrentTask(ctx context.Context, session, evaluationID string) (*dres.TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEvaluation(ctx, "current_task", session, evaluationID); err != nil {
		return nil, err
	}
	task, ok := s.tasks[evaluationID]
	if !ok {
		return nil, &dres.RemoteError{Operation: "current_task", StatusCode: http.StatusNotFound, Message: "No active task"}
	}
	return &task, nil
}

// Submit records the submission and accepts it.
func (s *DRESServer) Submit(ctx context.Context, session, evaluationID string, submission dres.Submission) (*dres.SubmissionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEvaluation(ctx, "submit", session, evaluationID); err != nil {
		return nil, err
	}
	s.submissions = append(s.submissions, RecordedSubmission{
		Session:      session,
		EvaluationID: evaluationID,
		Submission:   submission,
	})
	return &dres.SubmissionStatus{Status: true, Submission: "INDETERMINATE", Description: "Submission received"}, nil
}

// LegacySubmit records the v1 submission and accepts it.
//
// Deprecated: use Submit.
func (s *DRESServer) LegacySubmit(ctx context.Context, session string, submission dres.LegacySubmission) (*dres.SubmissionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginSession(ctx, "legacy_submit", session); err != nil {
		return nil, err
	}
	s.legacySubmissions = append(s.legacySubmissions, RecordedLegacySubmission{Session: session, Submission: submission})
	return &dres.SubmissionStatus{Status: true, Submission: "INDETERMINATE", Description: "Submission received"}, nil
}

// LogResults records the result log.
func (s *DRESServer) LogResults(ctx context.Context, session string, log dres.QueryResultLog) (*dres.SuccessStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginSession(ctx, "log_results", session); err != nil {
		return nil, err
	}
	s.resultLogs = append(s.resultLogs, RecordedResultLog{Session: session, Log: log})
	return &dres.SuccessStatus{Status: true, Description: "Log received"}, nil
}

// LogQueryEvents records the interaction log.
func (s *DRESServer) LogQueryEvents(ctx context.Context, session string, log dres.QueryEventLog) (*dres.SuccessStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginSession(ctx, "log_query_events", session); err != nil {
		return nil, err
	}
	s.eventLogs = append(s.eventLogs, RecordedEventLog{Session: session, Log: log})
	return &dres.SuccessStatus{Status: true, Description: "Log received"}, nil
}

// ServerTime returns the timestamp set with SetServerTime.
func (s *DRESServer) ServerTime(ctx context.Context) (*dres.CurrentTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "server_time"); err != nil {
		return nil, err
	}
	return &dres.CurrentTime{TimeStamp: s.serverTime}, nil
}

// begin counts the call and applies context cancellation and injected
// failures. Caller must hold s.mu.
func (s *DRESServer) begin(ctx context.Context, op string) error {
	s.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.failures[op]; ok {
		return err
	}
	return nil
}

// beginSession additionally rejects unknown sessions. Caller must hold s.mu.
func (s *DRESServer) beginSession(ctx context.Context, op, session string) error {
	if err := s.begin(ctx, op); err != nil {
		return err
	}
	if _, ok := s.sessions[session]; !ok {
		return &dres.RemoteError{Operation: op, StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	return nil
}

// beginEvaluation additionally rejects unknown evaluations. Caller must hold s.mu.
func (s *DRESServer) beginEvaluation(ctx context.Context, op, session, evaluationID string) error {
	if err := s.beginSession(ctx, op, session); err != nil {
		return err
	}
	for _, e := range s.evaluations {
		if e.ID == evaluationID {
			return nil
		}
	}
	return &dres.RemoteError{Operation: op, StatusCode: http.StatusNotFound, Message: "Evaluation not found"}
}
