package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"os"
	"strings"

	"github.com/cyberbrosec/cyberbro-web/internal/log"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	SiteDir       string
	CanonicalHost string
	AllowedOrigin string
	CSP           string
	TrustedHops   int

	RedisURL string

	ContactRecipient  string
	MailFromName      string
	MailFromEmail     string
	BrevoAPIKey       string
	BrevoAPIKeyParam  string
	ContactRateMax    int
	ContactRateWindow int

	CheckerRateMax    int
	CheckerRateWindow int

	DraftEndpoint string
	DraftAPIKey   string
	DraftKeyParam string
	DraftModel    string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.SiteDir, "site-dir", "/srv/www/site", "directory holding the static site to serve")
	fs.StringVar(&c.CanonicalHost, "canonical-host", "cyberbrosecurity.work", "canonical host for redirects (www-stripped)")
	fs.StringVar(&c.AllowedOrigin, "allowed-origin", "https://cyberbrosecurity.work,https://www.cyberbrosecurity.work", "comma-separated origins accepted for form posts")
	fs.StringVar(&c.CSP, "csp", "", "Content-Security-Policy header value (empty disables the header)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of trusted proxy hops for client IP (0..10)")

	fs.StringVar(&c.RedisURL, "redis-url", "", "redis connection url for counters and rate limits (empty disables)")

	fs.StringVar(&c.ContactRecipient, "contact-recipient", "", "email address contact form submissions are sent to")
	fs.StringVar(&c.MailFromName, "mail-from-name", "CyberBro Security Contact Form", "From name on outbound contact mail")
	fs.StringVar(&c.MailFromEmail, "mail-from-email", "noreply@cyberbrosecurity.work", "From address on outbound contact mail")
	fs.StringVar(&c.BrevoAPIKey, "brevo-api-key", "", "brevo transactional mail api key")
	fs.StringVar(&c.BrevoAPIKeyParam, "brevo-api-key-param", "", "ssm parameter name to fetch the brevo api key from at boot")
	fs.IntVar(&c.ContactRateMax, "contact-rate-max", 5, "contact form submissions allowed per window per ip")
	fs.IntVar(&c.ContactRateWindow, "contact-rate-window", 3600, "contact form rate window in seconds")

	fs.IntVar(&c.CheckerRateMax, "checker-rate-max", 20, "scam check submissions allowed per window per ip")
	fs.IntVar(&c.CheckerRateWindow, "checker-rate-window", 3600, "scam check rate window in seconds")

	fs.StringVar(&c.DraftEndpoint, "draft-endpoint", "", "openai-compatible chat completions url for reply drafts (empty disables)")
	fs.StringVar(&c.DraftAPIKey, "draft-api-key", "", "api key for the draft endpoint")
	fs.StringVar(&c.DraftKeyParam, "draft-key-param", "", "ssm parameter name to fetch the draft api key from at boot")
	fs.StringVar(&c.DraftModel, "draft-model", "gpt-4o-mini", "model name sent to the draft endpoint")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// AllowedOrigins splits the comma-separated allowed-origin value into a
// trimmed slice, dropping empty entries.
func (c App) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Error link limits
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	if c.TrustedHops < 0 || c.TrustedHops > 10 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be 0..10 (got %d)", c.TrustedHops))
	}

	// Origins must parse as scheme://host
	for _, o := range c.AllowedOrigins() {
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			errs = append(errs, fmt.Errorf("ALLOWED_ORIGIN entry %q must be scheme://host with no path", o))
		}
	}

	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid REDIS_URL %q: %v", c.RedisURL, err))
		}
	}

	// Mail addresses
	if c.ContactRecipient != "" {
		if _, err := mail.ParseAddress(c.ContactRecipient); err != nil {
			errs = append(errs, fmt.Errorf("invalid CONTACT_RECIPIENT %q: %v", c.ContactRecipient, err))
		}
	}
	if _, err := mail.ParseAddress(c.MailFromEmail); err != nil {
		errs = append(errs, fmt.Errorf("invalid MAIL_FROM_EMAIL %q: %v", c.MailFromEmail, err))
	}

	// Rate limits
	if c.ContactRateMax < 1 {
		errs = append(errs, fmt.Errorf("CONTACT_RATE_MAX must be >= 1 (got %d)", c.ContactRateMax))
	}
	if c.ContactRateWindow < 1 {
		errs = append(errs, fmt.Errorf("CONTACT_RATE_WINDOW must be >= 1 second (got %d)", c.ContactRateWindow))
	}
	if c.CheckerRateMax < 1 {
		errs = append(errs, fmt.Errorf("CHECKER_RATE_MAX must be >= 1 (got %d)", c.CheckerRateMax))
	}
	if c.CheckerRateWindow < 1 {
		errs = append(errs, fmt.Errorf("CHECKER_RATE_WINDOW must be >= 1 second (got %d)", c.CheckerRateWindow))
	}

	// Draft endpoint
	if c.DraftEndpoint != "" {
		if u, err := url.Parse(c.DraftEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("DRAFT_ENDPOINT must be a URL (got %q)", c.DraftEndpoint))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
