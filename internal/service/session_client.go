// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sentinel-Gate/dres-client/internal/config"
	"github.com/Sentinel-Gate/dres-client/internal/domain/dres"
	"github.com/Sentinel-Gate/dres-client/internal/port/outbound"
)

// CredentialSource supplies the configuration holding the login credentials.
// *config.Resolver implements it.
type CredentialSource interface {
	Resolve() (*config.Configuration, error)
}

// SessionState is the lifecycle state of a SessionClient.
type SessionState int

const (
	// StateUnauthenticated is the initial state, before a successful login.
	StateUnauthenticated SessionState = iota
	// StateAuthenticated holds a session id but no selected evaluation.
	StateAuthenticated
	// StateEvaluationSelected holds a session id and a current evaluation.
	StateEvaluationSelected
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateEvaluationSelected:
		return "evaluation_selected"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// SubmitOptions are the optional parts of an item submission.
type SubmitOptions struct {
	// Start is the segment start in milliseconds.
	Start *int64
	// End is the segment end in milliseconds.
	End *int64
	// Collection names the media collection of the item.
	Collection string
	// EvaluationID overrides the selected evaluation for this call.
	EvaluationID string
}

// SessionClient holds the state of one logged-in DRES user: the session
// id, the last fetched evaluations and the selected evaluation.
//
// All operations on one SessionClient are serialized by a mutex, including
// the remote call they make, so a submission issued concurrently with Login
// observes either no session or the new one, never a partial update.
// There is no transition back to unauthenticated; create a new client.
type SessionClient struct {
	api    outbound.DRESAPI
	creds  CredentialSource
	logger *slog.Logger

	mu          sync.Mutex
	user        *dres.User
	evaluations []dres.Evaluation
	current     *dres.Evaluation
}

// NewSessionClient creates an unauthenticated client dispatching through api.
func NewSessionClient(api outbound.DRESAPI, creds CredentialSource, logger *slog.Logger) *SessionClient {
	return &SessionClient{
		api:    api,
		creds:  creds,
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (c *SessionClient) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *SessionClient) stateLocked() SessionState {
	switch {
	case c.user == nil:
		return StateUnauthenticated
	case c.current == nil:
		return StateAuthenticated
	default:
		return StateEvaluationSelected
	}
}

// User returns the logged-in user, if any.
func (c *SessionClient) User() (dres.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return dres.User{}, false
	}
	return *c.user, true
}

// Login authenticates with the configured credentials.
// Configuration errors (e.g. config.ErrCredentialsMissing) are returned as
// is; a rejected or failed login returns a *dres.AuthenticationError and
// leaves the client's state untouched. A successful login on an already
// authenticated client replaces the session and clears the evaluation
// list and selection, which belonged to the old session.
func (c *SessionClient) Login(ctx context.Context) error {
	return c.login(ctx, c.api.Login)
}

// LoginLegacy authenticates against the v1 API.
//
// Deprecated: use Login.
func (c *SessionClient) LoginLegacy(ctx context.Context) error {
	return c.login(ctx, c.api.LegacyLogin) //nolint:staticcheck // legacy entry point
}

func (c *SessionClient) login(ctx context.Context, call func(context.Context, dres.LoginRequest) (*dres.User, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := c.creds.Resolve()
	if err != nil {
		return err
	}

	user, err := call(ctx, dres.LoginRequest{Username: cfg.User, Password: cfg.Password})
	if err != nil {
		return &dres.AuthenticationError{User: cfg.User, Cause: err}
	}
	if user.SessionID == "" {
		return &dres.AuthenticationError{User: cfg.User, Cause: errors.New("server returned no session id")}
	}

	c.user = user
	c.evaluations = nil
	c.current = nil
	c.logger.Info("logged in to DRES", "user", user.Username, "role", user.Role)
	return nil
}

// ListEvaluations fetches the evaluations visible to this session and
// keeps them for SelectEvaluation. Every call re-fetches.
func (c *SessionClient) ListEvaluations(ctx context.Context) ([]dres.Evaluation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil, dres.ErrNotAuthenticated
	}

	evaluations, err := c.api.ListEvaluations(ctx, c.user.SessionID)
	if err != nil {
		return nil, err
	}
	c.evaluations = evaluations
	c.logger.Debug("fetched evaluations", "count", len(evaluations))
	return append([]dres.Evaluation(nil), evaluations...), nil
}

// Evaluations returns the result of the last ListEvaluations call.
func (c *SessionClient) Evaluations() []dres.Evaluation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dres.Evaluation(nil), c.evaluations...)
}

// SelectEvaluation makes the evaluation with the given id current.
// It looks only at the last fetched list and matches ids exactly.
// Returns false, leaving the previous selection in place, if no such
// evaluation was fetched.
func (c *SessionClient) SelectEvaluation(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.evaluations {
		if c.evaluations[i].ID == id {
			selected := c.evaluations[i]
			c.current = &selected
			c.logger.Debug("selected evaluation", "evaluation_id", id, "name", selected.Name)
			return true
		}
	}
	return false
}

// CurrentEvaluation returns the selected evaluation, if any.
func (c *SessionClient) CurrentEvaluation() (dres.Evaluation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return dres.Evaluation{}, false
	}
	return *c.current, true
}

// CurrentTask returns the task running in evaluationID, or in the selected
// evaluation when evaluationID is empty.
func (c *SessionClient) CurrentTask(ctx context.Context, evaluationID string) (*dres.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, evaluationID, err := c.evaluationScopeLocked(evaluationID)
	if err != nil {
		return nil, err
	}
	return c.api.CurrentTask(ctx, session, evaluationID)
}

// SubmitItem submits one media item, optionally restricted to a time range.
// The server's status is returned verbatim, including rejections.
func (c *SessionClient) SubmitItem(ctx context.Context, item string, opts SubmitOptions) (*dres.SubmissionStatus, error) {
	return c.submit(ctx, opts.EvaluationID, dres.Answer{
		MediaItemName:           item,
		MediaItemCollectionName: opts.Collection,
		Start:                   opts.Start,
		End:                     opts.End,
	})
}

// SubmitText submits a free-text answer. An empty evaluationID uses the
// selected evaluation.
func (c *SessionClient) SubmitText(ctx context.Context, text, evaluationID string) (*dres.SubmissionStatus, error) {
	return c.submit(ctx, evaluationID, dres.Answer{Text: text})
}

func (c *SessionClient) submit(ctx context.Context, evaluationID string, answer dres.Answer) (*dres.SubmissionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, evaluationID, err := c.evaluationScopeLocked(evaluationID)
	if err != nil {
		return nil, err
	}

	submission := dres.Submission{
		AnswerSets: []dres.AnswerSet{{Answers: []dres.Answer{answer}}},
	}
	status, err := c.api.Submit(ctx, session, evaluationID, submission)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("submission dispatched", "evaluation_id", evaluationID, "status", status.Status, "verdict", status.Submission)
	return status, nil
}

// SubmitFrame submits an item and optional frame number through the v1 API,
// where the server infers the competition from the session.
//
// Deprecated: use SubmitItem.
func (c *SessionClient) SubmitFrame(ctx context.Context, item string, frame *int) (*dres.SubmissionStatus, error) {
	return c.legacySubmit(ctx, dres.LegacySubmission{Item: item, Frame: frame})
}

// SubmitTextLegacy submits free text through the v1 API.
//
// Deprecated: use SubmitText.
func (c *SessionClient) SubmitTextLegacy(ctx context.Context, text string) (*dres.SubmissionStatus, error) {
	return c.legacySubmit(ctx, dres.LegacySubmission{Text: text})
}

func (c *SessionClient) legacySubmit(ctx context.Context, submission dres.LegacySubmission) (*dres.SubmissionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil, dres.ErrNotAuthenticated
	}
	return c.api.LegacySubmit(ctx, c.user.SessionID, submission) //nolint:staticcheck // legacy entry point
}

// LogResults sends a result log. The content of results and events is not
// validated locally.
func (c *SessionClient) LogResults(ctx context.Context, timestamp int64, sortType, resultSetAvailability string, results []dres.QueryResult, events []dres.QueryEvent) (*dres.SuccessStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil, dres.ErrNotAuthenticated
	}
	return c.api.LogResults(ctx, c.user.SessionID, dres.QueryResultLog{
		Timestamp:             timestamp,
		SortType:              sortType,
		ResultSetAvailability: resultSetAvailability,
		Results:               results,
		Events:                events,
	})
}

// LogQueryEvents sends an interaction log.
func (c *SessionClient) LogQueryEvents(ctx context.Context, timestamp int64, events []dres.QueryEvent) (*dres.SuccessStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil, dres.ErrNotAuthenticated
	}
	return c.api.LogQueryEvents(ctx, c.user.SessionID, dres.QueryEventLog{
		Timestamp: timestamp,
		Events:    events,
	})
}

// evaluationScopeLocked returns the session id and the evaluation id to use:
// the explicit one if given, else the selected one. Caller must hold c.mu.
func (c *SessionClient) evaluationScopeLocked(explicit string) (string, string, error) {
	if c.user == nil {
		return "", "", dres.ErrNotAuthenticated
	}
	if explicit != "" {
		return c.user.SessionID, explicit, nil
	}
	if c.current == nil {
		return "", "", dres.ErrNoEvaluation
	}
	return c.user.SessionID, c.current.ID, nil
}
