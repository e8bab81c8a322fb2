package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"career-agent/internal/display"
	"career-agent/internal/listener"
	"career-agent/internal/mission"
	"career-agent/internal/supervisor"
)

const shellHelp = `Commands:
  launch <kind> [key=value ... | {json}]   start a mission
  status <id>                              show a mission
  list [status]                            list your missions
  review <id>                              approve or reject interactively
  approve <id> [feedback]                  approve a mission waiting for review
  reject <id> <feedback>                   reject and regenerate
  cancel [id]                              cancel a run (default: most recent)
  watch on|off                             print progress changes
  help                                     show this help
  exit                                     quit`

var errQuit = errors.New("quit")

type shell struct {
	app     *app
	console *listener.Console
	userID  string

	mu        sync.Mutex
	stopWatch context.CancelFunc
	watchCtx  context.Context
}

func newShell(ctx context.Context, a *app, console *listener.Console, userID string) *shell {
	return &shell{app: a, console: console, userID: userID, watchCtx: ctx}
}

// printResults reports finished runs above the prompt until ctx ends.
func (s *shell) printResults(ctx context.Context) {
	results := s.app.supervisor.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-results:
			s.console.AsyncPrintln(display.FormatResult(r))
			if r.Metrics != nil {
				s.app.log.Debug("run metrics", "mission_id", r.MissionID, "metrics", display.FormatRunMetrics(r.Metrics))
			}
		}
	}
}

func (s *shell) run(ctx context.Context) error {
	go s.printResults(ctx)
	defer s.setWatch(false)

	s.console.AsyncPrintln("Career agent ready. Type 'help' for commands, 'exit' to quit.")
	for {
		line, err := s.console.ReadLine()
		if err != nil {
			if errors.Is(err, listener.ErrClosed) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if err := s.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			s.console.AsyncPrintln("Error: " + err.Error())
		}
	}
}

func (s *shell) handle(ctx context.Context, line string) error {
	words := splitWords(line)
	if len(words) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(words[0]), words[1:]
	sup := s.app.supervisor

	switch cmd {
	case "exit", "quit":
		return errQuit
	case "help":
		s.console.AsyncPrintln(shellHelp + "\n\n" + s.app.kinds.Definitions().HelpText())
		return nil

	case "launch":
		if len(args) == 0 {
			return errors.New("usage: launch <kind> [key=value ... | {json}]")
		}
		kind, err := mission.ParseKind(args[0])
		if err != nil {
			return err
		}
		raw, pairs := splitLaunchArgs(args[1:])
		input, err := parseInput(raw, pairs)
		if err != nil {
			return err
		}
		id, err := sup.Launch(ctx, kind, s.userID, input)
		if err != nil {
			return err
		}
		s.console.AsyncPrintln(fmt.Sprintf("[Mission %s launched] %s", id, kind))
		return nil

	case "status":
		if len(args) != 1 {
			return errors.New("usage: status <id>")
		}
		view, err := sup.GetStatus(ctx, args[0])
		if err != nil {
			return err
		}
		s.console.AsyncPrintln(display.FormatStatus(view))
		s.app.log.Debug("mission status", "mission_id", view.ID, "view", display.FormatStatusFull(view))
		return nil

	case "list":
		var status mission.Status
		if len(args) > 0 {
			status = mission.Status(args[0])
		}
		list, err := sup.List(ctx, s.userID, status, supervisor.Page{})
		if err != nil {
			return err
		}
		s.console.AsyncPrintln(display.FormatSummaries(list))
		return nil

	case "approve", "reject":
		if len(args) == 0 {
			return fmt.Errorf("usage: %s <id> [feedback]", cmd)
		}
		d := supervisor.Decision{Approved: cmd == "approve", Feedback: strings.Join(args[1:], " ")}
		if !d.Approved && d.Feedback == "" {
			return errors.New("reject needs feedback for the regeneration")
		}
		return s.decide(ctx, args[0], d)

	case "review":
		if len(args) != 1 {
			return errors.New("usage: review <id>")
		}
		d, err := reviewPrompt(ctx, s.console, sup, args[0])
		if err != nil {
			return err
		}
		return s.decide(ctx, args[0], d)

	case "cancel":
		if len(args) > 0 {
			if err := sup.Cancel(args[0]); err != nil {
				return err
			}
			s.console.AsyncPrintln(fmt.Sprintf("[Mission %s cancelling]", args[0]))
			return nil
		}
		id, err := sup.CancelMostRecent()
		if err != nil {
			return err
		}
		s.console.AsyncPrintln(fmt.Sprintf("[Mission %s cancelling]", id))
		return nil

	case "watch":
		on := len(args) == 0 || strings.EqualFold(args[0], "on")
		s.setWatch(on)
		if on {
			s.console.AsyncPrintln("Watching mission progress.")
		} else {
			s.console.AsyncPrintln("Stopped watching.")
		}
		return nil
	}
	return fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (s *shell) decide(ctx context.Context, id string, d supervisor.Decision) error {
	st, err := s.app.supervisor.Decide(ctx, id, d)
	if err != nil {
		return err
	}
	s.console.AsyncPrintln(fmt.Sprintf("[Mission %s %s]", id, display.Badge(st)))
	return nil
}

func (s *shell) setWatch(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if !on {
		return
	}
	ctx, cancel := context.WithCancel(s.watchCtx)
	s.stopWatch = cancel
	notes := s.app.supervisor.Watch(ctx, s.userID, s.app.cfg.Watch.Interval)
	go func() {
		for n := range notes {
			s.console.AsyncPrintln(display.FormatNotification(n))
		}
	}()
}

// splitWords splits on spaces, keeping double-quoted and {...} runs whole.
func splitWords(line string) []string {
	var (
		words   []string
		cur     strings.Builder
		inQuote bool
		depth   int
		started bool
	)
	flush := func() {
		if started {
			words = append(words, cur.String())
		}
		cur.Reset()
		started = false
	}
	for _, r := range line {
		switch {
		case r == '"' && depth == 0:
			inQuote = !inQuote
			started = true
		case r == '{' && !inQuote:
			depth++
			cur.WriteRune(r)
			started = true
		case r == '}' && !inQuote && depth > 0:
			depth--
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuote && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return words
}
