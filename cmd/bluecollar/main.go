// bluecollar is a terminal client for the marketplace: it keeps the login
// session, lists bookings and chats in booking rooms.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/bluecollar-client/api"
	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/jrsteele09/bluecollar-client/internal/config"
	"github.com/jrsteele09/bluecollar-client/session"
	"github.com/jrsteele09/bluecollar-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a command needs, wired together once per run.
type app struct {
	cfg     config.Config
	session *session.Session
	client  *api.Client
	hub     *chat.Hub
	in      io.Reader
	out     io.Writer

	invalidated chan struct{}
}

func run(args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("bluecollar", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	banner := flags.Bool("banner", false, "print the banner")
	flags.Usage = func() { printUsage(flags) }
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	setupLogging(cfg.GetLogLevel(), *verbose)
	if *banner {
		displayAppname(cfg.GetAppName())
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(flags)
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sess := session.New(store)
	if err := sess.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	hub := chat.NewHub(cfg.GetChatURL(), sess,
		chat.WithDialer(chat.WebsocketDialer{Origin: cfg.GetChatOrigin()}),
		chat.WithHistoryWait(cfg.GetHistoryWait()))
	a := &app{
		cfg:         cfg,
		session:     sess,
		client:      api.New(cfg, sess),
		hub:         hub,
		in:          in,
		out:         out,
		invalidated: make(chan struct{}),
	}
	defer a.hub.CloseAll()

	var invalidateOnce sync.Once
	sess.OnInvalidated(func() {
		a.hub.CloseAll()
		fmt.Fprintln(os.Stderr, "session expired, log in again")
		invalidateOnce.Do(func() { close(a.invalidated) })
	})
	sess.OnChange(func(token.Pair) {
		if err := a.hub.Rekey(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("chat: reconnect with new credential")
		}
	})

	return a.dispatch(ctx, rest[0], rest[1:])
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "bookings":
		return a.bookings(ctx)
	case "chat":
		return a.chat(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func setupLogging(level string, verbose bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: bluecollar [flags] <command> [args]

Commands:
  login -u <username> [-p <password>]   log in and keep the session
  logout                                 forget the session
  whoami                                 show who is logged in
  bookings                               list your bookings
  chat <room | booking id>               chat in a room, /quit to leave

Flags:
%s`, flags.FlagUsages())
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
