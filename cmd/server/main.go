package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/cyberbrosec/cyberbro-web/internal/cfg"
	"github.com/cyberbrosec/cyberbro-web/internal/contacthttp"
	"github.com/cyberbrosec/cyberbro-web/internal/draft"
	"github.com/cyberbrosec/cyberbro-web/internal/health"
	"github.com/cyberbrosec/cyberbro-web/internal/httpmw"
	"github.com/cyberbrosec/cyberbro-web/internal/kvstore"
	"github.com/cyberbrosec/cyberbro-web/internal/mail"
	"github.com/cyberbrosec/cyberbro-web/internal/opshttp"
	"github.com/cyberbrosec/cyberbro-web/internal/ratelimit"
	"github.com/cyberbrosec/cyberbro-web/internal/sitehandler"
	"github.com/cyberbrosec/cyberbro-web/internal/statshttp"
	"github.com/cyberbrosec/cyberbro-web/internal/usage"

	"github.com/go-chi/chi/v5"

	"github.com/cyberbrosec/cyberbro-web/internal/httpserver"
	"github.com/cyberbrosec/cyberbro-web/internal/log"
	"github.com/cyberbrosec/cyberbro-web/internal/metrics"
	"github.com/cyberbrosec/cyberbro-web/internal/otelx"
	"github.com/cyberbrosec/cyberbro-web/internal/prof"
	v "github.com/cyberbrosec/cyberbro-web/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			v.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix CYBERBRO_ and validate
	cfg.FillFromEnv(flag.CommandLine, "CYBERBRO_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// validate config
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		Commit:            v.Commit,
		BuildId:           v.BuildId,
		Level:             lvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"pyro_tenant", conf.PyroTenantID,
		"trace_sample", conf.TraceSample,
		"include_error_links", conf.IncludeErrorLinks,
		"max_error_links", conf.MaxErrorLinks,
		"site_dir", conf.SiteDir,
		"canonical_host", conf.CanonicalHost,
		"trusted_hops", conf.TrustedHops,
		"redis_configured", conf.RedisURL != "",
		"mail_configured", conf.BrevoAPIKey != "" || conf.BrevoAPIKeyParam != "",
		"draft_configured", conf.DraftEndpoint != "",
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		AuthToken:     "",
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"build_id":  vi.BuildId,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Setup metrics / admin listener
	var m *metrics.ServerMetrics = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// fetch secrets from SSM if the deployment references parameters
	// instead of passing keys through the environment
	brevoKey := conf.BrevoAPIKey
	draftKey := conf.DraftAPIKey
	if (brevoKey == "" && conf.BrevoAPIKeyParam != "") || (draftKey == "" && conf.DraftKeyParam != "") {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config, cannot fetch SSM parameters")
			os.Exit(1)
		}
		ssmClient := ssm.NewFromConfig(awsCfg)

		if brevoKey == "" && conf.BrevoAPIKeyParam != "" {
			brevoKey, err = fetchSSMParam(ctx, ssmClient, conf.BrevoAPIKeyParam)
			if err != nil {
				// mail is the site's primary function, fail early so
				// systemd restarts us rather than serving a broken form
				L.Error(ctx, err, "failed to fetch brevo api key", "param", conf.BrevoAPIKeyParam)
				os.Exit(1)
			}
		}
		if draftKey == "" && conf.DraftKeyParam != "" {
			draftKey, err = fetchSSMParam(ctx, ssmClient, conf.DraftKeyParam)
			if err != nil {
				// reply drafts are best-effort, run without them
				L.Error(ctx, err, "failed to fetch draft api key, reply drafts will use the fallback template", "param", conf.DraftKeyParam)
				draftKey = ""
			}
		}
	}

	// connect the KV store backing usage counters and per-feature rate
	// limits. Unreachable redis is not fatal: limits fail open and stats
	// read zeroed, the site itself keeps serving.
	var store kvstore.Store
	var redisClose func() error
	if conf.RedisURL != "" {
		rs, err := kvstore.NewRedis(ctx, conf.RedisURL)
		if err != nil {
			L.Error(ctx, err, "redis connect failed, counters and per-feature rate limits disabled")
		} else {
			store = kvstore.Instrument(rs, m.IncKVError)
			redisClose = rs.Close
			L.Info(ctx, "connected to redis")
		}
	} else {
		L.Info(ctx, "no redis url configured, counters and per-feature rate limits disabled")
	}

	counters := usage.New(store)

	contactWindow := ratelimit.NewFixedWindow(store, "contact_form",
		conf.ContactRateMax, time.Duration(conf.ContactRateWindow)*time.Second)
	contactWindow.OnDenied = func(string) { m.IncWindowDenied("contact_form") }

	checkerWindow := ratelimit.NewFixedWindow(store, "scam_check",
		conf.CheckerRateMax, time.Duration(conf.CheckerRateWindow)*time.Second)
	checkerWindow.OnDenied = func(string) { m.IncWindowDenied("scam_check") }

	// outbound mail
	var mailer mail.Mailer
	if brevoKey != "" {
		mailer = mail.NewBrevo(brevoKey)
	} else {
		L.Warn(ctx, "no brevo api key configured, contact form submissions will be rejected")
	}

	// optional AI reply drafts
	var drafter draft.Drafter
	if conf.DraftEndpoint != "" {
		drafter = draft.New(draft.Options{
			Endpoint: conf.DraftEndpoint,
			APIKey:   draftKey,
			Model:    conf.DraftModel,
		})
	}

	contactAPI := contacthttp.NewAPI(contacthttp.Options{
		Logger:         L,
		Mailer:         mailer,
		Drafter:        drafter,
		Limiter:        contactWindow,
		Metrics:        m,
		AllowedOrigins: conf.AllowedOrigins(),
		Recipient:      conf.ContactRecipient,
		FromName:       conf.MailFromName,
		FromEmail:      conf.MailFromEmail,
	})

	statsAPI := statshttp.NewAPI(statshttp.Options{
		Logger:         L,
		Usage:          counters,
		Limiter:        checkerWindow,
		Metrics:        m,
		AllowedOrigins: conf.AllowedOrigins(),
	})

	// setup site handler that serves the prerendered static site
	siteHandler, err := sitehandler.New(&sitehandler.Options{
		Logger: L,
		SiteFS: os.DirFS(conf.SiteDir),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler", "site_dir", conf.SiteDir)
		os.Exit(1)
	}

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// readiness is just the shutdown gate: redis and mail degrade
	// gracefully and must not take the whole site out of rotation
	readiness := gate.Probe()

	// Setup rate limiter middleware for the whole listener
	limiter := ratelimit.New(ctx,
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	// start site http server
	siteHTTPStop, err := httpserver.Start(
		ctx,
		httpserver.Options{
			Port:      conf.HTTPPort,
			Health:    health.Fixed(true, ""),
			Readiness: readiness,
			APIRoutes: func(r chi.Router) {
				contactAPI.RegisterRoutes(r)
				statsAPI.RegisterRoutes(r)
			},
			SiteHandler:  siteHandler,
			UseRecoverMW: true,
			OnPanic:      m.IncHttpPanic,
			MetricsMW:    m.Middleware,
			RateLimitMW:  limiter.Middleware,
			Logger:       L,
			ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
			Canonical: httpmw.CanonicalOptions{
				Host:         conf.CanonicalHost,
				SkipPrefixes: []string{"/api/", "/-/"},
			},
			SecurityHeaders: httpmw.SecurityHeadersOptions{CSP: conf.CSP},
		},
	)

	if err != nil {
		L.Error(ctx, err, "failed to start site http listener port")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// start admin/ops listener to serve metrics, health checks, pprof and any future admin APIs
	// sg restricts inbound to internal monitoring infrastructure
	// we reject connections from public ips and requests with x-forwarded set in middleware
	// to prevent accidental exposure if sg is misconfigured or load balancer ever sends traffic there
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until signal so we dont exit
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// wait for ctrl+c / sigterm
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail health checks to drain connections
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	// will make sleep time tunable in the future
	L.Info(context.Background(), "sleeping 60s for in-flight and load balancer health checks to drain")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(60 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "app http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	if redisClose != nil {
		if err := redisClose(); err != nil {
			L.Error(context.Background(), err, "redis close")
		}
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

func fetchSSMParam(ctx context.Context, client *ssm.Client, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", fmt.Errorf("ssm parameter %s is empty", name)
	}
	return *out.Parameter.Value, nil
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
