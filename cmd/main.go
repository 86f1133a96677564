// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main runs the certificate renewal agent.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	agent "github.com/absmach/acme-agent"
	"github.com/absmach/acme-agent/acme"
	"github.com/absmach/acme-agent/api"
	httpapi "github.com/absmach/acme-agent/api/http"
	jaegerClient "github.com/absmach/acme-agent/internal/jaeger"
	pgClient "github.com/absmach/acme-agent/internal/postgres"
	"github.com/absmach/acme-agent/internal/prometheus"
	"github.com/absmach/acme-agent/internal/server"
	httpserver "github.com/absmach/acme-agent/internal/server/http"
	"github.com/absmach/acme-agent/internal/uuid"
	apostgres "github.com/absmach/acme-agent/postgres"
	"github.com/absmach/acme-agent/reload"
	"github.com/absmach/acme-agent/revocation"
	"github.com/absmach/acme-agent/tracing"
	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	svcName        = "acme-agent"
	envPrefixDB    = "AM_AGENT_DB_"
	envPrefixHTTP  = "AM_AGENT_HTTP_"
	defSvcHTTPPort = "9010"
)

type config struct {
	LogLevel   string  `env:"AM_AGENT_LOG_LEVEL"    envDefault:"info"`
	JaegerURL  url.URL `env:"AM_JAEGER_URL"         envDefault:"http://jaeger:4318"`
	InstanceID string  `env:"AM_AGENT_INSTANCE_ID"  envDefault:""`
	TraceRatio float64 `env:"AM_JAEGER_TRACE_RATIO" envDefault:"1.0"`

	Domain          string        `env:"AM_AGENT_DOMAIN"            envDefault:""`
	Contacts        []string      `env:"AM_AGENT_CONTACTS"          envDefault:""`
	CAURL           string        `env:"AM_AGENT_CA_URL"            envDefault:"https://localhost:9000"`
	ProvisionerPath string        `env:"AM_AGENT_PROVISIONER_PATH"  envDefault:"/acme/acme/directory"`
	InsecureCA      bool          `env:"AM_AGENT_CA_INSECURE"       envDefault:"false"`
	AccountKeyPath  string        `env:"AM_AGENT_ACCOUNT_KEY_PATH"  envDefault:"account.key"`
	CertPath        string        `env:"AM_AGENT_CERT_PATH"         envDefault:"tls.crt"`
	KeyPath         string        `env:"AM_AGENT_KEY_PATH"          envDefault:"tls.key"`
	ChallengeDir    string        `env:"AM_AGENT_CHALLENGE_DIR"     envDefault:"challenges"`
	ThresholdPct    float64       `env:"AM_AGENT_THRESHOLD_PCT"     envDefault:"75"`
	ForceMarkerPath string        `env:"AM_AGENT_FORCE_MARKER"      envDefault:""`
	CheckInterval   time.Duration `env:"AM_AGENT_CHECK_INTERVAL"    envDefault:"60s"`
	ErrorBackoff    time.Duration `env:"AM_AGENT_ERROR_BACKOFF"     envDefault:"10s"`
	ReloadCommand   []string      `env:"AM_AGENT_RELOAD_CMD"        envDefault:""`
	ReloadPIDFile   string        `env:"AM_AGENT_RELOAD_PID_FILE"   envDefault:""`
	CRLURL          string        `env:"AM_AGENT_CRL_URL"           envDefault:""`
	CRLCachePath    string        `env:"AM_AGENT_CRL_CACHE_PATH"    envDefault:"crl.der"`
	CRLMaxAge       time.Duration `env:"AM_AGENT_CRL_MAX_AGE"       envDefault:"24h"`
	HistoryDB       bool          `env:"AM_AGENT_HISTORY_DB"        envDefault:"false"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load %s configuration : %s", svcName, err)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID, err = uuid.New().ID()
		if err != nil {
			log.Fatal(fmt.Sprintf("failed to generate instance ID: %s", err))
		}
	}

	repo := agent.NewNopRepository()
	if cfg.HistoryDB {
		dbConfig := pgClient.Config{Name: "agent"}
		if err := env.ParseWithOptions(&dbConfig, env.Options{Prefix: envPrefixDB}); err != nil {
			logger.Error(err.Error())
		}
		db, err := pgClient.Setup(dbConfig, *apostgres.Migration())
		if err != nil {
			log.Fatal(fmt.Sprintf("failed to connect to %s database: %s", svcName, err))
		}
		defer db.Close()
		repo = apostgres.NewRepository(db)
	}

	tp, err := jaegerClient.NewProvider(ctx, svcName, cfg.JaegerURL, cfg.InstanceID, cfg.TraceRatio)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to init Jaeger: %s", err))
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("error shutting down tracer provider: %v", err))
		}
	}()
	tracer := tp.Tracer(svcName)

	httpServerConfig := server.Config{Port: defSvcHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err))
	}

	svc, err := newService(cfg, repo, tracer, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to create %s service: %s", svcName, err))
		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, httpapi.MakeHandler(chi.NewMux(), svc, cfg.ChallengeDir, logger, cfg.InstanceID), logger)

	loop := agent.NewLoop(svc, cfg.CheckInterval, cfg.ErrorBackoff, logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return loop.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
	}
}

func newService(cfg config, repo agent.Repository, tracer trace.Tracer, logger *slog.Logger) (agent.Service, error) {
	client := acme.NewClient(acme.Config{
		BaseURL:            cfg.CAURL,
		ProvisionerPath:    cfg.ProvisionerPath,
		InsecureSkipVerify: cfg.InsecureCA,
	}, logger)

	var reloader reload.Reloader
	switch {
	case len(cfg.ReloadCommand) > 0:
		reloader = &reload.ExecReloader{Command: cfg.ReloadCommand}
	case cfg.ReloadPIDFile != "":
		reloader = &reload.SignalReloader{PIDFile: cfg.ReloadPIDFile}
	}

	var crl *revocation.Cache
	if cfg.CRLURL != "" {
		crl = revocation.NewCache(cfg.CRLURL, cfg.CRLCachePath, cfg.CRLMaxAge, logger)
	}

	agentConfig := agent.Config{
		Domain:          cfg.Domain,
		Contacts:        cfg.Contacts,
		AccountKeyPath:  cfg.AccountKeyPath,
		CertPath:        cfg.CertPath,
		KeyPath:         cfg.KeyPath,
		ChallengeDir:    cfg.ChallengeDir,
		ThresholdPct:    cfg.ThresholdPct,
		ForceMarkerPath: cfg.ForceMarkerPath,
	}

	svc, err := agent.NewService(agentConfig, client, reloader, crl, repo, uuid.New(), logger)
	if err != nil {
		return nil, err
	}
	svc = api.LoggingMiddleware(svc, logger)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = api.MetricsMiddleware(svc, counter, latency)
	svc = tracing.New(svc, tracer)

	return svc, nil
}

func initLogger(levelText string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return &slog.Logger{}, fmt.Errorf(`{"level":"error","message":"%s: %s","ts":"%s"}`, err, levelText, time.RFC3339Nano)
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(logHandler), nil
}
