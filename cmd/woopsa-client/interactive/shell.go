// Package interactive provides the interactive command-line interface
// of woopsa-client.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/woopsa-protocol/woopsa-go/pkg/discovery"
	"github.com/woopsa-protocol/woopsa-go/pkg/service"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscriber"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Default subscription intervals of the sub command.
const (
	DefaultMonitorInterval = 100 * time.Millisecond
	DefaultPublishInterval = 100 * time.Millisecond
)

// DefaultDiscoverTimeout bounds the discover command.
const DefaultDiscoverTimeout = 3 * time.Second

// Shell handles interactive mode for woopsa-client.
type Shell struct {
	client  *service.Client
	browser discovery.Browser
	rl      *readline.Instance

	// Guards out and subs; handlers print from the dispatcher goroutine.
	mu   sync.Mutex
	out  io.Writer
	subs []*subscriber.Subscription
}

// New creates an interactive shell for client. browser serves the discover
// command and may be nil.
func New(client *service.Client, browser discovery.Browser) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "woopsa> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := NewShell(client, browser, rl.Stdout())
	s.rl = rl
	return s, nil
}

// NewShell creates a shell writing to out, without line editing.
func NewShell(client *service.Client, browser discovery.Browser, out io.Writer) *Shell {
	return &Shell{
		client:  client,
		browser: browser,
		out:     out,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	if s.rl != nil {
		return s.rl.Stdout()
	}
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			s.println("Exiting...")
			cancel()
			return
		}

		if !s.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the shell should
// exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "read", "r":
		err = s.cmdRead(ctx, args)
	case "write", "w":
		err = s.cmdWrite(ctx, args)
	case "invoke", "i":
		err = s.cmdInvoke(ctx, args)
	case "meta", "m":
		err = s.cmdMeta(ctx, args)
	case "sub", "s":
		err = s.cmdSubscribe(args)
	case "unsub", "u":
		err = s.cmdUnsubscribe(args)
	case "subs":
		s.cmdSubscriptions()
	case "state":
		err = s.cmdState()
	case "discover", "d":
		err = s.cmdDiscover(ctx, args)
	case "quit", "exit", "q":
		return false
	default:
		err = fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	if err != nil {
		s.printf("Error: %v\n", err)
	}
	return true
}

func (s *Shell) printHelp() {
	s.println(`
Woopsa Client Commands:
  Objects:
    read <path>                  - Read a property
    write <path> <value>         - Write a property
    invoke <path> [Arg=value]... - Invoke a method
    meta [path]                  - Show the metadata of an object

  Subscriptions:
    sub <path> [monitor] [publish] - Subscribe to a property (e.g. sub /Votes 50ms 200ms)
    unsub <n>                      - Unsubscribe subscription n
    subs                           - List subscriptions
    state                          - Show the subscription channel state

  Discovery:
    discover [timeout]           - Browse for Woopsa servers via mDNS

  General:
    help                         - Show this help
    quit                         - Exit

  Paths:
    /Votes, /Plant/Temperature; values are converted to the property type`)
}

func (s *Shell) cmdRead(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: read <path>")
	}
	v, err := s.client.Read(ctx, args[0])
	if err != nil {
		return err
	}
	s.printf("%s = %s\n", args[0], formatValue(v))
	return nil
}

func (s *Shell) cmdWrite(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: write <path> <value>")
	}
	// The server converts the text to the property type.
	v := value.Text(strings.Join(args[1:], " "))
	if err := s.client.Write(ctx, args[0], v); err != nil {
		return err
	}
	s.printf("%s written\n", args[0])
	return nil
}

func (s *Shell) cmdInvoke(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: invoke <path> [Arg=value]...")
	}
	callArgs, err := parseArguments(args[1:])
	if err != nil {
		return err
	}
	v, err := s.client.Invoke(ctx, args[0], callArgs)
	if err != nil {
		return err
	}
	s.printf("%s() = %s\n", args[0], formatValue(v))
	return nil
}

// parseArguments parses Name=value pairs as Text values.
func parseArguments(args []string) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(args))
	for _, a := range args {
		name, text, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid argument %q (want Name=value)", a)
		}
		out[name] = value.Text(text)
	}
	return out, nil
}

func (s *Shell) cmdMeta(ctx context.Context, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	m, err := s.client.Meta(ctx, path)
	if err != nil {
		return err
	}
	s.print(formatMeta(m))
	return nil
}

// formatMeta renders object metadata.
func formatMeta(m *wire.Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.Name)
	for _, item := range m.Items {
		fmt.Fprintf(&b, "  %s/\n", item)
	}
	for _, p := range m.Properties {
		access := "rw"
		if p.ReadOnly {
			access = "ro"
		}
		fmt.Fprintf(&b, "  %s : %s [%s]\n", p.Name, p.Type, access)
	}
	for _, method := range m.Methods {
		args := make([]string, len(method.ArgumentInfos))
		for i, a := range method.ArgumentInfos {
			args[i] = a.Name + " " + a.Type.String()
		}
		fmt.Fprintf(&b, "  %s(%s) : %s\n", method.Name, strings.Join(args, ", "), method.ReturnType)
	}
	return b.String()
}

func (s *Shell) cmdSubscribe(args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return errors.New("usage: sub <path> [monitor] [publish]")
	}
	monitor, publish := DefaultMonitorInterval, DefaultPublishInterval
	var err error
	if len(args) > 1 {
		if monitor, err = time.ParseDuration(args[1]); err != nil {
			return fmt.Errorf("invalid monitor interval: %w", err)
		}
	}
	if len(args) > 2 {
		if publish, err = time.ParseDuration(args[2]); err != nil {
			return fmt.Errorf("invalid publish interval: %w", err)
		}
	}

	s.mu.Lock()
	n := len(s.subs) + 1
	s.mu.Unlock()

	sub, err := s.client.Subscribe(args[0], monitor, publish, func(sub *subscriber.Subscription, notif wire.Notification) {
		s.printf("[%d] %s = %s (#%d)\n", n, sub.Path(), formatValue(notif.Value), notif.ID)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.printf("Subscribed [%d] %s (monitor %s, publish %s)\n", n, args[0], monitor, publish)
	return nil
}

func (s *Shell) cmdUnsubscribe(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: unsub <n>")
	}
	sub, err := s.subscription(args[0])
	if err != nil {
		return err
	}
	sub.Unsubscribe()
	s.printf("Unsubscribed [%s] %s\n", args[0], sub.Path())
	return nil
}

// subscription returns the subscription numbered arg.
func (s *Shell) subscription(arg string) (*subscriber.Subscription, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription number: %s", arg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.subs) {
		return nil, fmt.Errorf("no subscription %d", n)
	}
	return s.subs[n-1], nil
}

func (s *Shell) cmdSubscriptions() {
	s.mu.Lock()
	subs := append([]*subscriber.Subscription(nil), s.subs...)
	s.mu.Unlock()

	if len(subs) == 0 {
		s.println("No subscriptions")
		return
	}
	for i, sub := range subs {
		status := "pending"
		if id, ok := sub.ID(); ok {
			status = fmt.Sprintf("id %d", id)
		}
		switch {
		case sub.Failed():
			status = "failed: " + sub.Err().Error()
		case !sub.Active():
			status = "removed"
		}
		s.printf("  [%d] %s (monitor %s, publish %s) %s\n",
			i+1, sub.Path(), sub.MonitorInterval(), sub.PublishInterval(), status)
	}
}

func (s *Shell) cmdState() error {
	ch, err := s.client.Channel()
	if err != nil {
		return err
	}
	s.printf("Server:   %s\n", s.client.URL())
	s.printf("State:    %s\n", ch.State())
	if id := ch.ChannelID(); id != 0 {
		s.printf("Channel:  %d\n", id)
	}
	if ch.Local() {
		s.println("Service:  local fallback")
	}
	s.printf("Session:  %s\n", ch.SessionID())
	return nil
}

func (s *Shell) cmdDiscover(ctx context.Context, args []string) error {
	if s.browser == nil {
		return errors.New("discovery is not available")
	}
	timeout := DefaultDiscoverTimeout
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d
	}

	s.printf("Browsing for %s ...\n", timeout)
	found, err := discovery.Collect(ctx, s.browser, timeout)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		s.println("No servers found")
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].InstanceName < found[j].InstanceName })
	for _, svc := range found {
		s.printf("  %-24s %s\n", svc.InstanceName, svc.URL())
	}
	return nil
}

// formatValue renders a value with its type.
func formatValue(v value.Value) string {
	if v.Type() == value.TypeText {
		return strconv.Quote(v.Text())
	}
	return v.String()
}

func (s *Shell) print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, text)
}

func (s *Shell) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, text)
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
