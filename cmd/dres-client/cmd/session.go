package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sentinel-Gate/dres-client/internal/adapter/outbound/dresapi"
	"github.com/Sentinel-Gate/dres-client/internal/config"
	"github.com/Sentinel-Gate/dres-client/internal/service"
)

// errNoApp is returned when a command runs without setupApp.
var errNoApp = errors.New("client not initialized")

// newAPI builds the HTTP dispatcher for cfg.
func (a *app) newAPI(cfg *config.Configuration) *dresapi.HTTPClient {
	opts := []dresapi.ClientOption{
		dresapi.WithTimeout(requestTimeout),
		dresapi.WithMetrics(a.metrics),
		dresapi.WithLogger(a.logger),
	}
	if a.tracerProvider != nil {
		opts = append(opts, dresapi.WithTracerProvider(a.tracerProvider))
	}
	return dresapi.NewHTTPClient(cfg.Endpoint(), opts...)
}

// connectionConfig returns the configuration without requiring credentials.
// Used by commands that do not log in.
func (a *app) connectionConfig() (*config.Configuration, error) {
	cfg, err := a.resolver.Resolve()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, config.ErrCredentialsMissing) {
		return nil, err
	}

	cfg, err = a.resolver.LoadRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// login resolves the configuration, logs in and returns the session.
func (a *app) login(ctx context.Context) (*service.SessionClient, error) {
	cfg, err := a.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	client := service.NewSessionClient(a.newAPI(cfg), a.resolver, a.logger)
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// loginWithEvaluation logs in and, if evaluationID is set, fetches the
// evaluations and selects it.
func (a *app) loginWithEvaluation(ctx context.Context, evaluationID string) (*service.SessionClient, error) {
	client, err := a.login(ctx)
	if err != nil {
		return nil, err
	}
	if evaluationID == "" {
		return client, nil
	}

	if _, err := client.ListEvaluations(ctx); err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	if !client.SelectEvaluation(evaluationID) {
		return nil, fmt.Errorf("evaluation %q not found", evaluationID)
	}
	return client, nil
}

func currentApp() (*app, error) {
	if current == nil {
		return nil, errNoApp
	}
	return current, nil
}
