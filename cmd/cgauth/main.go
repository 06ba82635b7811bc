package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	cgAuth "github.com/cairnsgames/cgAuth"
	"github.com/cairnsgames/cgAuth/metrics/export/prometheus"
	"github.com/cairnsgames/cgAuth/provider"
	"github.com/cairnsgames/cgAuth/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const usage = `usage: cgauth [flags] <command> [args]

commands:
  restore                          validate the persisted token and print the session
  whoami                           alias for restore
  login <email> <password>         sign in with credentials
  provider <token>                 sign in with a provider ID token
  forgot <email>                   request a password reset link
  change-password <userid> <old> <new> <confirm>
  logout                           clear the session and the persisted token
  metrics                          run restore, then print Prometheus metrics
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	api       string
	tenant    string
	storeKind string
	dbPath    string
	redisAddr string
	logLevel  string
	timeout   time.Duration
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cgauth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage); fs.PrintDefaults() }

	var opts options
	fs.StringVar(&opts.api, "api", "", "auth backend base URL; overrides AUTH_API")
	fs.StringVar(&opts.tenant, "tenant", os.Getenv("CGAUTH_TENANT"), "tenant (application) id")
	fs.StringVar(&opts.storeKind, "store", "sqlite", "token store: sqlite, redis or memory")
	fs.StringVar(&opts.dbPath, "db", "cgauth.db", "sqlite database path")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "logrus level")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-request backend timeout; 0 keeps AUTH_API_TIMEOUT")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -log-level: %v\n", err)
		return 2
	}
	logger.SetLevel(level)

	cfg, err := cgAuth.LoadConfigFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	if opts.api != "" {
		cfg.API.BaseURL = opts.api
	}
	if opts.timeout > 0 {
		cfg.API.Timeout = opts.timeout
	}

	tokens, closeStore, err := openStore(ctx, opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	defer closeStore()

	b := cgAuth.New().
		WithConfig(cfg).
		WithStore(tokens).
		WithTenant(opts.tenant).
		WithLogger(logger)
	if cfg.Provider.IssuerURL != "" {
		decoder, err := provider.NewOIDCDecoder(ctx, cfg.Provider)
		if err != nil {
			fmt.Fprintf(stderr, "provider decoder: %v\n", err)
			return 1
		}
		b = b.WithProviderDecoder(decoder)
	}

	m, err := b.Build()
	if err != nil {
		fmt.Fprintf(stderr, "build manager: %v\n", err)
		return 2
	}
	defer m.Close()

	if err := execute(ctx, m, fs.Args(), stdout, logger); err != nil {
		fmt.Fprintf(stderr, "cgauth: %v\n", err)
		var flagErr usageError
		if errors.As(err, &flagErr) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func execute(ctx context.Context, m *cgAuth.Manager, args []string, out io.Writer, log logrus.FieldLogger) error {
	cmd, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) != n {
			return usageError(fmt.Sprintf("%s expects %d argument(s), got %d", cmd, n, len(rest)))
		}
		return nil
	}

	// Every command starts from the persisted session, the way a host
	// application mounts the session on startup. Only restore reports a failed
	// restore; everything else carries on from whatever state it left.
	if err := m.Start(ctx); err != nil {
		if cmd == "restore" || cmd == "whoami" {
			return fmt.Errorf("restore: %w", err)
		}
		log.WithError(err).Warn("restore failed, continuing")
	}

	switch cmd {
	case "restore", "whoami":
		if err := need(0); err != nil {
			return err
		}
		return printSession(out, m)

	case "login":
		if err := need(2); err != nil {
			return err
		}
		if _, err := m.Login(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		return printSession(out, m)

	case "provider":
		if err := need(1); err != nil {
			return err
		}
		if err := m.SetProviderAccessToken(ctx, rest[0]); err != nil {
			return err
		}
		return printSession(out, m)

	case "forgot":
		if err := need(1); err != nil {
			return err
		}
		resp, err := m.Forgot(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, message(resp))
		return nil

	case "change-password":
		if err := need(4); err != nil {
			return err
		}
		resp, err := m.ChangePassword(ctx, rest[0], rest[1], rest[2], rest[3])
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		fmt.Fprintf(out, "%s %s\n", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w %d", cgAuth.ErrBackendStatus, resp.StatusCode)
		}
		return nil

	case "logout":
		if err := need(0); err != nil {
			return err
		}
		if err := m.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil

	case "metrics":
		if err := need(0); err != nil {
			return err
		}
		rec := &bufferedResponse{header: http.Header{}}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/metrics", nil)
		prometheus.NewPrometheusExporter(m).Handler().ServeHTTP(rec, req)
		_, err := out.Write(rec.body)
		return err
	}

	return usageError("unknown command " + cmd)
}

func printSession(out io.Writer, m *cgAuth.Manager) error {
	s := m.Session()
	view := struct {
		Tenant        string              `json:"tenant"`
		Authenticated bool                `json:"authenticated"`
		User          *cgAuth.UserProfile `json:"user,omitempty"`
	}{
		Tenant:        m.Tenant(),
		Authenticated: s.Authenticated(),
		User:          s.User,
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func message(resp *cgAuth.ServerResponse) string {
	if resp == nil {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(resp.Raw)
}

func openStore(ctx context.Context, opts options, log logrus.FieldLogger) (cgAuth.TokenStore, func(), error) {
	switch opts.storeKind {
	case "memory":
		return store.NewMemory(), func() {}, nil

	case "sqlite":
		s, err := store.OpenSQLite(ctx, opts.dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "redis":
		addr := opts.redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		var cleanup func()
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			cleanup = mr.Close
			log.WithField("addr", addr).Warn("no redis configured, using in-process miniredis")
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return store.NewRedis(client, "cgauth", 0), func() {
			_ = client.Close()
			if cleanup != nil {
				cleanup()
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", opts.storeKind)
}

// bufferedResponse captures a handler's output without net/http/httptest.
type bufferedResponse struct {
	header http.Header
	body   []byte
	status int
}

func (r *bufferedResponse) Header() http.Header { return r.header }
func (r *bufferedResponse) WriteHeader(status int) {
	r.status = status
}
func (r *bufferedResponse) Write(p []byte) (int, error) {
	r.body = append(r.body, p...)
	return len(p), nil
}
