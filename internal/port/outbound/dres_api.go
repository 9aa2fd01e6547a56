// Package outbound defines the outbound port interfaces for talking to the
// DRES evaluation server.
package outbound

import (
	"context"

	"github.com/Sentinel-Gate/dres-client/internal/domain/dres"
)

// DRESAPI is the outbound port for the DRES REST surface.
// Each method maps to exactly one remote call; implementations must not
// retry or batch. Session-scoped methods take the session id issued by Login.
type DRESAPI interface {
	// Login authenticates and returns the user with its session id.
	Login(ctx context.Context, req dres.LoginRequest) (*dres.User, error)

	// ListEvaluations returns the evaluations visible to the session.
	ListEvaluations(ctx context.Context, session string) ([]dres.Evaluation, error)

	// CurrentTask returns the task currently running in the evaluation.
	CurrentTask(ctx context.Context, session, evaluationID string) (*dres.TaskInfo, error)

	// Submit sends answer sets to the evaluation.
	Submit(ctx context.Context, session, evaluationID string, submission dres.Submission) (*dres.SubmissionStatus, error)

	// LogResults sends a result log.
	LogResults(ctx context.Context, session string, log dres.QueryResultLog) (*dres.SuccessStatus, error)

	// LogQueryEvents sends an interaction log.
	LogQueryEvents(ctx context.Context, session string, log dres.QueryEventLog) (*dres.SuccessStatus, error)

	// ServerTime returns the server clock. Needs no session.
	ServerTime(ctx context.Context) (*dres.CurrentTime, error)

	// LegacyLogin authenticates against the v1 API.
	//
	// Deprecated: use Login.
	LegacyLogin(ctx context.Context, req dres.LoginRequest) (*dres.User, error)

	// LegacySubmit submits through the v1 API, where the competition is
	// inferred from the session.
	//
	// Deprecated: use Submit.
	LegacySubmit(ctx context.Context, session string, submission dres.LegacySubmission) (*dres.SubmissionStatus, error)
}
