// Package listener owns the interactive terminal: a readline prompt with
// asynchronous notices printed above it.
package listener

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// ErrClosed is returned by reads after the user pressed Ctrl+D or Ctrl+C.
var ErrClosed = errors.New("input closed")

type Console struct {
	rl  *readline.Instance
	out io.Writer

	mu        sync.Mutex
	prompt    string
	holdAsync bool
	heldLines []string

	// readLine is rl.Readline unless a test replaces it.
	readLine func() (string, error)
}

// New opens a readline console. historyFile may be empty.
func New(prompt, historyFile string) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	c := &Console{rl: rl, out: rl.Stdout(), prompt: prompt}
	c.readLine = rl.Readline
	return c, nil
}

// NewScripted is a console that reads the given lines and writes to out.
func NewScripted(out io.Writer, lines ...string) *Console {
	if out == nil {
		out = os.Stdout
	}
	queue := append([]string(nil), lines...)
	c := &Console{out: out}
	c.readLine = func() (string, error) {
		if len(queue) == 0 {
			return "", io.EOF
		}
		line := queue[0]
		queue = queue[1:]
		return line, nil
	}
	return c
}

func (c *Console) Close() {
	if c.rl != nil {
		_ = c.rl.Close()
	}
}

func (c *Console) SetPrompt(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = p
	if c.rl != nil {
		c.rl.SetPrompt(p)
	}
}

// BeginInteractive holds asynchronous output until EndInteractive so it
// cannot interleave with a question being asked.
func (c *Console) BeginInteractive() {
	c.mu.Lock()
	c.holdAsync = true
	c.mu.Unlock()
}

func (c *Console) EndInteractive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdAsync = false
	for _, s := range c.heldLines {
		c.writeUnlocked(s)
	}
	c.heldLines = nil
}

func (c *Console) writeUnlocked(s string) {
	if c.rl == nil {
		fmt.Fprintln(c.out, s)
		return
	}
	_, _ = c.rl.Write([]byte("\r\n" + s + "\r\n"))
	c.rl.Refresh()
}

// PrintAbove writes immediately, even during an interactive exchange.
func (c *Console) PrintAbove(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeUnlocked(s)
}

// AsyncPrintln writes a background notice above the prompt.
func (c *Console) AsyncPrintln(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holdAsync {
		c.heldLines = append(c.heldLines, s)
		return
	}
	c.writeUnlocked(s)
}

// ReadLine returns the next trimmed line.
func (c *Console) ReadLine() (string, error) {
	line, err := c.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return "", ErrClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask shows prompt for a single answer and restores the previous prompt.
func (c *Console) Ask(prompt string) (string, error) {
	c.mu.Lock()
	old := c.prompt
	c.mu.Unlock()
	c.SetPrompt(prompt)
	defer c.SetPrompt(old)
	if c.rl == nil {
		c.PrintAbove(prompt)
	}
	return c.ReadLine()
}

func (c *Console) AskYesNo(question string) (bool, error) {
	c.BeginInteractive()
	defer c.EndInteractive()

	c.PrintAbove(question + " [y/n]")
	for {
		ans, err := c.Ask("> ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(ans) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		c.PrintAbove("Please answer y/n.")
	}
}
