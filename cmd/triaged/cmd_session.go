package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/curax/triage/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage diagnostic sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}

		list, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTURNS\tURGENCY\tSTARTED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				s.ID,
				s.Status,
				s.TurnCount,
				s.Context.Assessment.Urgency,
				s.StartedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session transcript and assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}

		s, err := store.Get(ctx, types.SessionID(args[0]))
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		fmt.Printf("Session %s (%s), %d turns, started %s\n",
			s.ID, s.Status, s.TurnCount, s.StartedAt.Format("2006-01-02 15:04:05"))
		if s.EmergencyFlag {
			fmt.Println("EMERGENCY flagged")
		}
		fmt.Println()
		for _, msg := range s.Transcript {
			fmt.Printf("[%s] %s\n", msg.Speaker, msg.Content)
		}

		a := s.Context.Assessment
		if len(a.PossibleConditions) == 0 && len(a.Recommendations) == 0 {
			return nil
		}
		fmt.Printf("\nUrgency: %s\n", a.Urgency)
		for _, c := range a.PossibleConditions {
			fmt.Printf("  - %s (%.0f%%): %s\n", c.Condition, c.Probability*100, c.Description)
		}
		if len(a.Recommendations) > 0 {
			fmt.Println("Recommendations:")
			for _, rec := range a.Recommendations {
				fmt.Printf("  - %s\n", rec)
			}
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Delete a session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}

		if args[0] == "all" {
			list, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, s := range list {
				if err := store.Delete(ctx, s.ID); err != nil {
					return fmt.Errorf("delete session %s: %w", s.ID, err)
				}
			}
			fmt.Printf("Cleared %d sessions.\n", len(list))
			return nil
		}

		id := types.SessionID(strings.TrimSpace(args[0]))
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cleared.\n", id)
		return nil
	},
}
