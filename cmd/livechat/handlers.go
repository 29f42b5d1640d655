package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
	"github.com/vovakirdan/livechat-sdk-go/livechat/rest"
	"github.com/vovakirdan/livechat-sdk-go/livechat/state"
)

// session bundles everything a connected command needs.
type session struct {
	log    zerolog.Logger
	api    *rest.Client
	client *livechat.Client
	store  *state.Store
	chat   *state.Chat
	reg    *prometheus.Registry
}

func newRESTClient(cfg *Config, logger livechat.Logger) *rest.Client {
	api := rest.NewClient(cfg.API.BaseURL,
		rest.WithLogger(logger),
		rest.WithBreaker(cfg.API.BreakerFailures, cfg.API.BreakerTimeout),
	)
	api.SetToken(cfg.Client.Token)
	return api
}

func newSession(cmd *cobra.Command, cfg *Config) (*session, error) {
	log := newLogger(cfg.Log, cmd.ErrOrStderr())
	logger := livechat.NewZerologLogger(log)

	reg := prometheus.NewRegistry()
	metrics, err := livechat.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	api := newRESTClient(cfg, logger)
	client, err := livechat.NewClient(cfg.Client,
		livechat.WithLogger(logger),
		livechat.WithMetrics(metrics),
		livechat.WithUploader(api),
	)
	if err != nil {
		return nil, err
	}
	store := state.NewStore()
	return &session{
		log:    log,
		api:    api,
		client: client,
		store:  store,
		chat:   state.Use(client, store, state.WithRoomAPI(api)),
		reg:    reg,
	}, nil
}

func (s *session) close() {
	s.chat.Close()
	s.client.Disconnect()
}

// serveMetrics exposes the session registry until ctx is done.
func (s *session) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func runChat(cmd *cobra.Command, cfg *Config, rooms []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user, err := cfg.UserIdentity()
	if err != nil {
		return err
	}
	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.close()
	s.serveMetrics(ctx, cfg.Metrics.Addr)

	out := cmd.OutOrStdout()
	s.client.Subscribe(printEvent(out, user.ID))

	for _, room := range rooms {
		if err := s.chat.JoinRoom(ctx, room); err != nil {
			return fmt.Errorf("join %s: %w", room, err)
		}
	}
	if err := s.client.Initialize(ctx, user); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if _, err := s.chat.LoadRooms(ctx); err != nil {
		s.log.Warn().Err(err).Msg("could not load rooms")
	}

	current := ""
	if len(rooms) > 0 {
		current = rooms[0]
		s.chat.SelectRoom(current)
	}
	fmt.Fprintf(out, "Connected as %s. Type messages to chat, /quit to exit.\n", user.Name)

	inputCh := make(chan string)
	go readInput(cmd.InOrStdin(), inputCh)

	p := &prompt{chat: s.chat, out: out, room: current}
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down...")
			return nil
		case line, ok := <-inputCh:
			if !ok {
				return nil
			}
			if quit := p.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

func readInput(r io.Reader, dst chan<- string) {
	defer close(dst)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dst <- scanner.Text()
	}
}

// prompt interprets one line of chat input.
type prompt struct {
	chat *state.Chat
	out  io.Writer
	room string
}

func (p *prompt) handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if p.room == "" {
			fmt.Fprintln(p.out, "no room selected, use /room <id>")
			return false
		}
		p.chat.StopTyping(ctx, p.room)
		if _, err := p.chat.SendMessage(ctx, p.room, line); err != nil {
			fmt.Fprintf(p.out, "send failed: %v\n", err)
		}
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit":
		fmt.Fprintln(p.out, "Bye!")
		return true
	case "/room":
		if arg == "" {
			fmt.Fprintln(p.out, "usage: /room <id>")
			return false
		}
		if err := p.chat.JoinRoom(ctx, arg); err != nil {
			fmt.Fprintf(p.out, "join failed: %v\n", err)
			return false
		}
		p.room = arg
		p.chat.SelectRoom(arg)
		fmt.Fprintf(p.out, "now chatting in %s\n", arg)
	case "/leave":
		if arg == "" {
			arg = p.room
		}
		if err := p.chat.LeaveRoom(ctx, arg); err != nil {
			fmt.Fprintf(p.out, "leave failed: %v\n", err)
			return false
		}
		if arg == p.room {
			p.room = ""
		}
	case "/upload":
		if err := p.upload(ctx, arg); err != nil {
			fmt.Fprintf(p.out, "upload failed: %v\n", err)
		}
	case "/read":
		p.chat.MarkRoomAsRead(ctx, p.room)
	case "/away":
		p.chat.SetPresence(ctx, livechat.PresenceAway)
	case "/back":
		p.chat.SetPresence(ctx, livechat.PresenceOnline)
	case "/typing":
		p.chat.NotifyTyping(ctx, p.room)
	default:
		fmt.Fprintf(p.out, "unknown command %s\n", command)
	}
	return false
}

func (p *prompt) upload(ctx context.Context, path string) error {
	if path == "" || p.room == "" {
		return errors.New("usage: /upload <path> inside a room")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	contentType, err := detectContentType(path)
	if err != nil {
		return err
	}
	_, err = p.chat.SendFile(ctx, p.room, filepath.Base(path), contentType, f)
	return err
}

func detectContentType(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	return mt.String(), nil
}

// printEvent renders client events as chat transcript lines.
func printEvent(w io.Writer, self string) func(livechat.Event) {
	return func(ev livechat.Event) {
		switch e := ev.(type) {
		case livechat.MessageEvent:
			m := e.Message
			name := m.SenderName
			if name == "" {
				name = m.SenderID
			}
			switch m.Type {
			case livechat.MessageImage, livechat.MessageFile:
				fmt.Fprintf(w, "[%s] %s sent %s: %v\n", m.RoomID, name, m.Type, m.Metadata["url"])
			default:
				fmt.Fprintf(w, "[%s] %s: %s\n", m.RoomID, name, m.Content)
			}
		case livechat.UserEvent:
			if e.UserID == self {
				return
			}
			if e.Joined {
				fmt.Fprintf(w, ">>> %s joined %s\n", displayName(e.UserName, e.UserID), e.RoomID)
			} else {
				fmt.Fprintf(w, "<<< %s left %s\n", displayName(e.UserName, e.UserID), e.RoomID)
			}
		case livechat.TypingEvent:
			if e.IsTyping {
				fmt.Fprintf(w, "... %s is typing in %s\n", displayName(e.UserName, e.UserID), e.RoomID)
			}
		case livechat.StateEvent:
			switch {
			case e.Terminal:
				fmt.Fprintf(w, "*** giving up: %v\n", e.Error)
			case e.Reason != "":
				fmt.Fprintf(w, "*** %s -> %s (%s)\n", e.OldState, e.NewState, e.Reason)
			case e.Error != nil:
				fmt.Fprintf(w, "*** %s -> %s: %v\n", e.OldState, e.NewState, e.Error)
			default:
				fmt.Fprintf(w, "*** %s -> %s\n", e.OldState, e.NewState)
			}
		case livechat.ErrorEvent:
			fmt.Fprintf(w, "error: %v\n", e.Err)
		}
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func runWatch(cmd *cobra.Command, cfg *Config) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user, err := cfg.UserIdentity()
	if err != nil {
		return err
	}
	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.close()
	s.serveMetrics(ctx, cfg.Metrics.Addr)

	out := cmd.OutOrStdout()
	s.client.OnStateChanged(func(ev livechat.StateEvent) {
		fmt.Fprintf(out, "[%s] ", time.Now().Format("15:04:05"))
		printEvent(out, user.ID)(ev)
	})
	if err := s.client.Initialize(ctx, user); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func runWhoami(cmd *cobra.Command, cfg *Config) error {
	user, err := cfg.UserIdentity()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:    %s\n", user.ID)
	fmt.Fprintf(out, "name:  %s\n", user.Name)
	if user.Email != "" {
		fmt.Fprintf(out, "email: %s\n", user.Email)
	}
	if user.Role != "" {
		fmt.Fprintf(out, "role:  %s\n", user.Role)
	}
	return nil
}

func restClientFor(cmd *cobra.Command, cfg *Config) *rest.Client {
	return newRESTClient(cfg, livechat.NewZerologLogger(newLogger(cfg.Log, cmd.ErrOrStderr())))
}

func runRoomsList(cmd *cobra.Command, cfg *Config) error {
	rooms, err := restClientFor(cmd, cfg).ListRooms(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tUNREAD")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.Name, r.Type, r.UnreadCount)
	}
	return tw.Flush()
}

func runRoomsCreate(cmd *cobra.Command, cfg *Config, name string, typ livechat.RoomType, participants []string) error {
	room, err := restClientFor(cmd, cfg).CreateRoom(cmd.Context(), name, typ, participants)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created room %s (%s)\n", room.ID, room.Name)
	return nil
}

func runRoomsRename(cmd *cobra.Command, cfg *Config, roomID, name string) error {
	room, err := restClientFor(cmd, cfg).UpdateRoom(cmd.Context(), roomID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed room %s to %s\n", room.ID, room.Name)
	return nil
}

func runRoomsDelete(cmd *cobra.Command, cfg *Config, roomID string) error {
	if err := restClientFor(cmd, cfg).DeleteRoom(cmd.Context(), roomID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted room %s\n", roomID)
	return nil
}

func runHistory(cmd *cobra.Command, cfg *Config, roomID string, limit int, before string) error {
	page, err := restClientFor(cmd, cfg).GetMessages(cmd.Context(), roomID, limit, before)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, m := range page.Messages {
		fmt.Fprintf(out, "%s  %s  %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04"), m.ID, displayName(m.SenderName, m.SenderID), m.Content)
	}
	if page.HasMore && len(page.Messages) > 0 {
		fmt.Fprintf(out, "more: --before %s\n", page.Messages[0].ID)
	}
	return nil
}

func runUpload(cmd *cobra.Command, cfg *Config, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if contentType == "" {
		if contentType, err = detectContentType(path); err != nil {
			return err
		}
	}
	res, err := restClientFor(cmd, cfg).Upload(cmd.Context(), filepath.Base(path), contentType, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d bytes)\n", res.URL, res.MimeType, res.Size)
	return nil
}
