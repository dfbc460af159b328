package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/clients"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/content"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

// cliVisitor is the visitor record the CLI keeps its cookies under.
const cliVisitor = "blogctl"

const usage = `usage: blogctl [flags] <command>

commands:
  login      sign in (-email, password from -password or BLOGCTL_PASSWORD)
  logout     sign out and forget the stored cookies
  whoami     print the signed-in user
  posts      list posts (-page, -limit, -search, -category)
  presence   watch the active user count until -watch elapses
`

type options struct {
	apiURL   string
	store    string
	dbPath   string
	email    string
	password string
	page     int
	limit    int
	search   string
	category string
	watch    time.Duration
	asJSON   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.Load()

	var opts options
	fs := flag.NewFlagSet("blogctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	fs.StringVar(&opts.apiURL, "api", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&opts.store, "store", "sqlite", "where cookies are kept: sqlite|redis|mysql|postgres|memory")
	fs.StringVar(&opts.dbPath, "db", defaultDBPath(), "sqlite file for the sqlite store")
	fs.StringVar(&opts.email, "email", "", "account email (login)")
	fs.StringVar(&opts.password, "password", os.Getenv("BLOGCTL_PASSWORD"), "account password (login)")
	fs.IntVar(&opts.page, "page", 1, "page number (posts)")
	fs.IntVar(&opts.limit, "limit", 10, "page size (posts)")
	fs.StringVar(&opts.search, "search", "", "search text (posts)")
	fs.StringVar(&opts.category, "category", "", "category id (posts)")
	fs.DurationVar(&opts.watch, "watch", 10*time.Second, "how long to watch (presence)")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one command")
	}

	if apiURL := strings.TrimRight(opts.apiURL, "/"); apiURL != cfg.APIBaseURL {
		cfg.APIBaseURL = apiURL
		if os.Getenv("SOCKET_URL") == "" {
			cfg.SocketURL = config.SocketURLFrom(apiURL)
		}
	}
	cfg.VisitorStore = opts.store
	if opts.store == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(opts.dbPath), 0o700); err != nil {
			return fmt.Errorf("state dir: %w", err)
		}
		cfg.SQLitePath = opts.dbPath
	}

	store, err := visitor.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := clients.NewRegistry(cfg, store, clients.Options{UserAgent: "blogctl/1.0", Lang: cfg.DefaultLang})
	if err != nil {
		return err
	}
	defer registry.Close()

	bundle, err := registry.Get(ctx, cliVisitor, clients.Request{})
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
	defer cancel()
	bundle.Session.WaitResolved(waitCtx)

	p := printer{out: out, json: opts.asJSON}
	switch cmd := fs.Arg(0); cmd {
	case "login":
		if opts.email == "" || opts.password == "" {
			return errors.New("-email and a password are required")
		}
		user, err := bundle.Session.Login(ctx, opts.email, opts.password)
		if err != nil {
			return err
		}
		if err := registry.Persist(ctx, bundle); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return p.print(user, fmt.Sprintf("signed in as %s %s (%s)", user.FirstName, user.LastName, user.Role))
	case "logout":
		logoutErr := bundle.Session.Logout(ctx)
		if err := registry.Forget(ctx, cliVisitor); err != nil && !errors.Is(err, visitor.ErrNotFound) {
			return err
		}
		if logoutErr != nil {
			fmt.Fprintln(out, "warning:", logoutErr)
		}
		return p.print(map[string]string{"status": "logged_out"}, "signed out")
	case "whoami":
		user := bundle.Session.User()
		if user == nil {
			return p.print(map[string]any{"user": nil}, "not signed in")
		}
		return p.print(user, fmt.Sprintf("%s %s <%s> %s", user.FirstName, user.LastName, user.Email, user.Role))
	case "posts":
		page, err := bundle.Posts.List(ctx, content.ListQuery{
			Page:     opts.page,
			Limit:    opts.limit,
			Search:   opts.search,
			Category: opts.category,
		})
		if err != nil {
			return err
		}
		var b strings.Builder
		for _, post := range page.Items {
			fmt.Fprintf(&b, "%-32s %s\n", post.Slug, post.Title)
		}
		fmt.Fprintf(&b, "page %d of %d (%d posts)", page.Pagination.Page, page.Pagination.TotalPages, page.Pagination.Total)
		return p.print(page, b.String())
	case "presence":
		if !bundle.Session.IsAuthenticated() {
			return errors.New("presence needs a signed-in session; run login first")
		}
		return watchPresence(ctx, bundle, opts.watch, p)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func watchPresence(ctx context.Context, bundle *clients.Bundle, watch time.Duration, p printer) error {
	counts := make(chan int, 8)
	unsubscribe := bundle.Presence.OnCount(func(n int) {
		select {
		case counts <- n:
		default:
		}
	})
	defer unsubscribe()

	timer := time.NewTimer(watch)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return nil
		case n := <-counts:
			if err := p.print(map[string]int{"activeUsers": n}, fmt.Sprintf("%s active users: %d", time.Now().Format(time.TimeOnly), n)); err != nil {
				return err
			}
		}
	}
}

type printer struct {
	out  io.Writer
	json bool
}

func (p printer) print(v any, text string) error {
	if !p.json {
		_, err := fmt.Fprintln(p.out, text)
		return err
	}
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "blogctl.db"
	}
	return filepath.Join(home, ".blogctl", "visitors.db")
}
