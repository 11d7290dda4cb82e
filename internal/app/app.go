package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/ex30link/internal/authsession"
	"github.com/florianilch/ex30link/internal/configui"
	"github.com/florianilch/ex30link/internal/connectedvehicle"
	"github.com/florianilch/ex30link/internal/credentials"
	"github.com/florianilch/ex30link/internal/tokenstore"
	"github.com/florianilch/ex30link/internal/volvoid"
)

// App orchestrates the lifecycle of the config UI server and the vehicle poller.
type App struct {
	cfg      *Config
	store    *tokenstore.Store
	resolver *credentials.Resolver
	identity *volvoid.Client
	flow     *configui.Flow
	ui       *configui.Server
}

// New creates a new App instance. No I/O is performed.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Storage.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	resolver, err := credentials.NewResolver(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create token resolver: %w", err)
	}

	identity, err := cfg.Volvo.NewIdentityClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create Volvo ID client: %w", err)
	}

	sessions, err := authsession.New(identity.AuthCodeURL, authsession.WithTimeout(cfg.Authorization.SessionTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	flow, err := configui.NewFlow(sessions, identity, resolver, cfg.Vehicle.VIN)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization flow: %w", err)
	}

	ui, err := configui.New(flow, configui.WithRecords(store))
	if err != nil {
		return nil, fmt.Errorf("failed to create config UI: %w", err)
	}

	return &App{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		identity: identity,
		flow:     flow,
		ui:       ui,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Address()
	var shutdownFuncs []func(context.Context) error

	if !a.store.Initialize(ctx) {
		slog.WarnContext(ctx, "continuing without durable token storage, rotated tokens will be lost on restart")
	}

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting config UI", "address", address)
	uiErrCh, err := a.ui.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("config UI startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.ui.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-uiErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "config UI runtime error", "error", err)
				return fmt.Errorf("config UI: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	poller, err := a.newPoller(ctx)
	switch {
	case errors.Is(err, credentials.ErrNoRefreshToken):
		slog.WarnContext(ctx, "vehicle not authorized, polling disabled until restart",
			"vin", a.cfg.Vehicle.VIN,
			"config_ui", "http://"+address+"/",
			"hint", "run `ex30link login` or authorize in the config UI",
		)
	case err != nil:
		slog.WarnContext(ctx, "polling disabled", "reason", err)
	default:
		g.Go(func() error {
			poller.Run(gCtx)
			return nil
		})
	}

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newPoller wires the vehicle client to a persistent token source. Returns
// credentials.ErrNoRefreshToken when the vehicle has never been authorized.
func (a *App) newPoller(ctx context.Context) (*Poller, error) {
	if a.cfg.Volvo.APIKey == "" {
		return nil, errors.New("volvo.api_key is not configured")
	}

	resolved, err := a.resolver.Resolve(ctx, a.cfg.Vehicle.VIN, a.cfg.Volvo.RefreshToken)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "refresh token resolved", "vin", a.cfg.Vehicle.VIN, "source", resolved.Source)

	tokenSource, err := credentials.NewPersistentTokenSource(
		func(refreshToken string) oauth2.TokenSource { return a.identity.TokenSource(refreshToken) },
		a.resolver,
		a.cfg.Vehicle.VIN,
		a.cfg.Volvo.RefreshToken,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	client, err := connectedvehicle.New(tokenSource, a.cfg.Volvo.APIKey, connectedvehicle.WithBaseURL(a.cfg.Volvo.APIBaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle client: %w", err)
	}

	return NewPoller(client, a.cfg.Vehicle.VIN, a.cfg.Polling.Interval), nil
}
