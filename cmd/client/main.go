package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/client/dashboard"
	"github.com/atinyakov/ClassFeed/internal/client/livefeed"
	"github.com/atinyakov/ClassFeed/internal/client/session"
	"github.com/atinyakov/ClassFeed/internal/client/verifier"
	"github.com/atinyakov/ClassFeed/internal/logger"
)

var (
	version   string
	buildDate string
)

const helpText = `Available commands:
  login [id] [password]   sign in and start the live feed
  logout                  sign out
  whoami                  show the signed-in student
  list                    show the feed
  filter all|photo|video  change the type filter
  open <id>               show one item in full
  close                   collapse the open item
  status                  show the live feed state
  help                    show this help
  exit                    quit`

// repl runs the interactive shell loop until exit or end of input.
func repl(ctx context.Context, d *dashboard.Dashboard, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "classfeed> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Fprintln(out, helpText)
		case "login":
			id, secret, ok := promptCredentials(scanner, out, args[1:])
			if !ok {
				return
			}
			if err := d.Login(ctx, id, secret); err != nil {
				fmt.Fprintln(out, dashboard.Explain(err))
				continue
			}
			fmt.Fprintln(out, "Signed in.")
		case "logout":
			if err := d.Logout(ctx); err != nil {
				fmt.Fprintln(out, dashboard.Explain(err))
				continue
			}
			fmt.Fprintln(out, "Signed out.")
		case "whoami":
			if v, err := d.View(ctx); err == nil {
				renderWhoami(out, v)
			}
		case "list":
			if v, err := d.View(ctx); err == nil {
				renderFeed(out, v)
			}
		case "filter":
			if len(args) < 2 {
				fmt.Fprintln(out, "Usage: filter all|photo|video")
				continue
			}
			if err := d.SetFilter(ctx, args[1]); err != nil {
				fmt.Fprintln(out, dashboard.Explain(err))
				continue
			}
			if v, err := d.View(ctx); err == nil {
				renderFeed(out, v)
			}
		case "open":
			if len(args) < 2 {
				fmt.Fprintln(out, "Usage: open <id>")
				continue
			}
			it, err := d.Select(ctx, args[1])
			if err != nil {
				fmt.Fprintln(out, dashboard.Explain(err))
				continue
			}
			renderItem(out, it)
		case "close":
			_ = d.ClearSelection(ctx)
		case "status":
			fmt.Fprintf(out, "Live feed: %s\n", d.Status())
		case "exit":
			fmt.Fprintln(out, "Bye")
			return
		default:
			fmt.Fprintln(out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// main parses command-line flags, restores the session and starts the shell.
func main() {
	var (
		baseURL     string
		sessionFile string
		caFile      string
		logLevel    string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&sessionFile, "session", session.DefaultFile, "path to the session file")
	flag.StringVar(&caFile, "ca", "", "path to a CA cert trusted for the server")
	flag.StringVar(&logLevel, "log-level", "warn", "client diagnostics log level")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("ClassFeed Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	lg := logger.New()
	if err := lg.InitDevelopment(logLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	store := session.NewStore(sessionFile)
	if err := store.Load(); err != nil {
		log.Fatal(err)
	}

	httpClient, err := verifier.NewHTTPClient(caFile)
	if err != nil {
		log.Fatal(err)
	}
	query := &livefeed.WSQuery{
		BaseURL:    baseURL,
		Token:      store.Token,
		Retries:    5,
		AckTimeout: 10 * time.Second,
		Log:        lg.Log,
	}
	if httpClient.Transport != nil {
		query.Dialer = dialerFor(httpClient)
	}
	d := dashboard.New(verifier.New(httpClient, baseURL), store, query, lg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = d.Run(ctx)
	}()

	if identity, _, ok := store.Current(); ok {
		fmt.Printf("Welcome back, %s.\n", identity.Name)
		if err := d.Resume(ctx); err != nil {
			lg.Log.Warn("resume failed", zap.Error(err))
			fmt.Println(dashboard.Explain(err))
		}
	}

	repl(ctx, d, os.Stdin, os.Stdout)
	stop()
	<-runDone
}
