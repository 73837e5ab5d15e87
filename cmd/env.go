package main

import (
	"context"
	"os"
	"time"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospectkeeper/internal/cost"
	"github.com/sells-group/prospectkeeper/internal/gateway"
	"github.com/sells-group/prospectkeeper/internal/resilience"
	"github.com/sells-group/prospectkeeper/internal/store"
	"github.com/sells-group/prospectkeeper/internal/verify"
	anthropicpkg "github.com/sells-group/prospectkeeper/pkg/anthropic"
	"github.com/sells-group/prospectkeeper/pkg/jina"
	"github.com/sells-group/prospectkeeper/pkg/resend"
	sfpkg "github.com/sells-group/prospectkeeper/pkg/salesforce"
	"github.com/sells-group/prospectkeeper/pkg/zerobounce"
)

// initStore opens the configured backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCalculator loads token pricing, falling back to built-in rates when no
// rates file is configured.
func initCalculator() (*cost.Calculator, error) {
	if cfg.Anthropic.RatesFile == "" {
		return cost.NewCalculator(cost.DefaultRates()), nil
	}
	rates, err := cost.LoadRates(cfg.Anthropic.RatesFile)
	if err != nil {
		return nil, eris.Wrap(err, "load rates file")
	}
	return cost.NewCalculator(rates), nil
}

// initGateways builds the full gateway set for the requested mode and wraps
// the idempotent remote tiers with retry and circuit breakers.
func initGateways(mode verify.Mode) (gateway.Set, error) {
	calc, err := initCalculator()
	if err != nil {
		return gateway.Set{}, err
	}

	zbClient := zerobounce.NewClient(cfg.ZeroBounce.Key, zerobounce.WithBaseURL(cfg.ZeroBounce.BaseURL))
	set := gateway.Set{
		Email: gateway.NewZeroBounceValidator(zbClient, calc),
	}

	switch mode {
	case verify.ModeConfirmation:
		resendClient := resend.NewClient(cfg.Resend.Key, resend.WithBaseURL(cfg.Resend.BaseURL))
		set.Confirm = gateway.NewResendConfirmer(resendClient, cfg.Resend.From, cfg.Resend.ReplyTo)
	case verify.ModeResearch:
		jinaClient := jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		set.Website = gateway.NewJinaWebsite(jinaClient)
		set.Profile = gateway.NewRodProfile(gateway.BrowserOptions{
			RemoteURL: cfg.Browser.Remote,
			Headless:  cfg.Browser.Headless,
			Timeout:   time.Duration(cfg.Browser.TimeoutSecs) * time.Second,
		})
		llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
		set.Research = gateway.NewClaudeResearcher(llm, jinaClient, calc,
			cfg.Anthropic.SonnetModel, int64(cfg.Anthropic.MaxTokens))
	}

	retry := resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier, cfg.Retry.JitterFraction)
	breakers := resilience.NewServiceBreakers(resilience.FromCircuitConfig(
		cfg.Retry.BreakerThreshold, cfg.Retry.BreakerResetSecs))

	return gateway.WrapResilient(set, retry, breakers), nil
}

// initSalesforce authenticates via the JWT bearer flow.
func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := gosf.Init(gosf.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
