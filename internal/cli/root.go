package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"career-agent/internal/display"
	"career-agent/internal/listener"
	"career-agent/internal/mission"
	"career-agent/internal/supervisor"
	"career-agent/internal/tui"
)

var (
	configPath string
	inMemory   bool
	userID     string

	current *app
)

func defaultUser() string {
	if u := os.Getenv("AGENT_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "A career assistant that runs job missions in the background",
	Long: `Launch job searches, resume tailoring, applications, LinkedIn drafts,
skill gap reports and interview preparation as background missions, and
review their results before anything is finalized.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), configPath, inMemory)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		console, err := listener.New("> ", "")
		if err != nil {
			return fmt.Errorf("init terminal input: %w", err)
		}
		defer console.Close()
		return newShell(cmd.Context(), current, console, userID).run(cmd.Context())
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <kind>",
	Short: "Launch a mission and wait until it finishes or needs review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := mission.ParseKind(args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("input")
		pairs, _ := cmd.Flags().GetStringArray("set")
		input, err := parseInput(raw, pairs)
		if err != nil {
			return err
		}
		id, err := current.supervisor.Launch(cmd.Context(), kind, userID, input)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mission %s launched (%s)\n", id, kind)
		return waitAndShow(cmd, id)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a mission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := current.supervisor.GetStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if full, _ := cmd.Flags().GetBool("full"); full {
			fmt.Fprint(cmd.OutOrStdout(), display.FormatStatusFull(view))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), display.FormatStatus(view))
		return nil
	},
}

var decideCmd = &cobra.Command{
	Use:   "decide <id>",
	Short: "Approve or reject a mission waiting for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		approve, _ := cmd.Flags().GetBool("approve")
		reject, _ := cmd.Flags().GetBool("reject")
		if approve == reject {
			return errors.New("pass exactly one of --approve or --reject")
		}
		d := supervisor.Decision{Approved: approve}
		d.Feedback, _ = cmd.Flags().GetString("feedback")
		d.EditedContent, _ = cmd.Flags().GetString("edited")
		if file, _ := cmd.Flags().GetString("edited-file"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			d.EditedContent = string(data)
		}
		st, err := current.supervisor.Decide(cmd.Context(), args[0], d)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mission %s %s\n", args[0], st)
		return waitAndShow(cmd, args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List missions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		all, _ := cmd.Flags().GetBool("all")
		owner := userID
		if all {
			owner = ""
		}
		list, err := current.supervisor.List(cmd.Context(), owner, mission.Status(status), supervisor.Page{Limit: limit, Offset: offset})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), display.FormatSummaries(list))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of your missions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		notes := current.supervisor.Watch(ctx, userID, current.cfg.Watch.Interval)
		_, err := tea.NewProgram(tui.NewWatchModel(userID, notes)).Run()
		return err
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Review a mission interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		console, err := listener.New("> ", "")
		if err != nil {
			return fmt.Errorf("init terminal input: %w", err)
		}
		defer console.Close()
		d, err := reviewPrompt(cmd.Context(), console, current.supervisor, args[0])
		if err != nil {
			return err
		}
		if _, err := current.supervisor.Decide(cmd.Context(), args[0], d); err != nil {
			return err
		}
		return waitAndShow(cmd, args[0])
	},
}

// waitAndShow blocks until the mission's run ends, then prints it.
func waitAndShow(cmd *cobra.Command, id string) error {
	if err := current.supervisor.Wait(cmd.Context(), id); err != nil {
		return err
	}
	view, err := current.supervisor.GetStatus(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), display.FormatStatus(view))
	if view.Status == mission.StatusNeedsReview {
		fmt.Fprintf(cmd.OutOrStdout(), "Review with: agent decide %s --approve|--reject --feedback \"...\"\n", id)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $AGENT_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "memory", false, "keep missions in memory instead of SQLite")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "user the missions belong to")

	launchCmd.Flags().String("input", "", "mission input as a JSON object")
	launchCmd.Flags().StringArray("set", nil, "input key=value (value @file reads a file)")

	statusCmd.Flags().Bool("full", false, "do not truncate long values")

	decideCmd.Flags().Bool("approve", false, "approve the result")
	decideCmd.Flags().Bool("reject", false, "reject and regenerate")
	decideCmd.Flags().String("feedback", "", "reviewer feedback")
	decideCmd.Flags().String("edited", "", "replacement content")
	decideCmd.Flags().String("edited-file", "", "read replacement content from a file")

	listCmd.Flags().String("status", "", "only missions with this status")
	listCmd.Flags().Int("limit", 0, "page size")
	listCmd.Flags().Int("offset", 0, "page offset")
	listCmd.Flags().Bool("all", false, "missions of every user")

	rootCmd.AddCommand(launchCmd, statusCmd, decideCmd, listCmd, watchCmd, reviewCmd)
}

// Execute runs the root command until it returns or the process receives
// SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if current != nil {
		current.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
