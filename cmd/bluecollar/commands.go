package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/bluecollar-client/chat"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func (a *app) login(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	username := flags.StringP("username", "u", "", "account username")
	password := flags.StringP("password", "p", "", "account password, read from stdin when empty")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("login: --username is required")
	}
	if *password == "" {
		fmt.Fprint(a.out, "Password: ")
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		*password = strings.TrimSpace(line)
	}

	if err := a.client.Login(ctx, *username, *password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return a.whoami()
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) whoami() error {
	identity := a.session.Identity()
	if !a.session.Authenticated() || identity == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	role := "customer"
	if identity.IsProvider {
		role = "provider"
	}
	fmt.Fprintf(a.out, "%s (id %s, %s)", identity.Username, identity.UserID, role)
	if !identity.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, ", access valid until %s", identity.ExpiresAt.Local().Format(time.Kitchen))
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) bookings(ctx context.Context) error {
	if !a.session.Authenticated() {
		return errors.New("not logged in")
	}
	bookings, err := a.client.Bookings(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tSTATUS\tCUSTOMER\tPROVIDER\tSERVICE\tROOM")
	for _, b := range bookings {
		provider := b.ProviderBusinessName
		if provider == "" {
			provider = b.ProviderUsername
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.BookingDatetime.Local().Format("Mon 02 Jan 15:04"),
			b.Status, b.Customer.Username, provider, b.ServiceDescription, b.RoomID())
	}
	return w.Flush()
}

// roomArg accepts a room name or a bare booking id.
func roomArg(arg string) string {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return chat.BookingRoom(id)
	}
	return arg
}

func (a *app) chat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("chat: expected one room")
	}
	if !a.session.Authenticated() {
		return errors.New("not logged in")
	}
	room := roomArg(args[0])
	if err := chat.ValidateRoom(room); err != nil {
		return err
	}

	// The websocket has no refresh path of its own.
	if err := a.client.Refresh(ctx); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	printer := &chatPrinter{out: a.out, printed: make(map[int64]struct{}), lost: make(chan struct{})}
	if _, err := a.hub.Join(ctx, room, printer); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	fmt.Fprintf(a.out, "Joined %s, type /quit to leave\n", room)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return a.hub.Leave(room)
		case <-printer.lost:
			return a.hub.Leave(room)
		case <-a.invalidated:
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return a.hub.Leave(room)
			}
			// Rekey may have replaced the channel since the last line.
			channel, ok := a.hub.Channel(room)
			if !ok {
				return chat.ErrNotConnected
			}
			if err := channel.SendMessage(line); err != nil && !errors.Is(err, chat.ErrEmptyMessage) {
				return err
			}
		}
	}
}

// chatPrinter writes each message once, in order, and reports when the
// connection is lost.
type chatPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	printed  map[int64]struct{}
	lost     chan struct{}
	lostOnce sync.Once
}

func (p *chatPrinter) StateChanged(room string, state chat.State) {
	log.Debug().Str("room", room).Stringer("state", state).Msg("chat: state")
}

func (p *chatPrinter) MessagesChanged(room string, messages []chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		if _, ok := p.printed[m.ID]; ok {
			continue
		}
		p.printed[m.ID] = struct{}{}
		sender := m.SenderUsername
		if m.IsSelf {
			sender = "me"
		}
		fmt.Fprintf(p.out, "[%s] %s: %s\n", m.Timestamp.Local().Format(time.Kitchen), sender, m.Message)
	}
}

func (p *chatPrinter) Error(room string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var roomErr *chat.RoomError
	switch {
	case errors.As(err, &roomErr):
		fmt.Fprintf(p.out, "! %s\n", roomErr.Message)
	case errors.Is(err, chat.ErrConnectionLost):
		fmt.Fprintln(p.out, "! connection lost")
		p.lostOnce.Do(func() { close(p.lost) })
	default:
		fmt.Fprintf(p.out, "! %v\n", err)
	}
}
