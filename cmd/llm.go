package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded LLM calls",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM calls, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		sessionID, _ := cmd.Flags().GetString("session")

		s, err := openAuditStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{
			Limit:     limit,
			Purpose:   purpose,
			SessionID: sessionID,
		})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(w, "No LLM calls recorded.")
			return nil
		}
		printLLMEvents(w, events)
		return nil
	},
}

func printLLMEvents(w io.Writer, events []store.LLMEventRecord) {
	row := "%-5v  %-19v  %-16v  %-12v  %-28v  %6v  %6v  %6v  %v\n"
	fmt.Fprintf(w, row, "ID", "Timestamp", "Purpose", "Session", "Model", "In", "Out", "Ms", "OK")
	fmt.Fprintln(w, strings.Repeat("─", 112))
	for _, e := range events {
		ok := "✓"
		if !e.Success {
			ok = "✗"
		}
		fmt.Fprintf(w, row,
			e.ID,
			e.Timestamp.Local().Format(timeLayout),
			e.Purpose,
			truncate(e.SessionID, 12),
			truncate(e.Model, 28),
			e.InputTokens,
			e.OutputTokens,
			e.LatencyMs,
			ok,
		)
	}
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full prompt and reply of one LLM call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openAuditStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}
		printLLMEvent(cmd.OutOrStdout(), e)
		return nil
	},
}

func printLLMEvent(w io.Writer, e *store.LLMEventRecord) {
	fields := [][2]string{
		{"ID", strconv.Itoa(e.ID)},
		{"Time", e.Timestamp.Local().Format(timeLayout)},
		{"Session", e.SessionID},
		{"Provider", e.Provider},
		{"Model", e.Model},
		{"Purpose", e.Purpose},
		{"Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)},
		{"Latency", fmt.Sprintf("%dms", e.LatencyMs)},
		{"Success", strconv.FormatBool(e.Success)},
	}
	if e.ErrorMessage != "" {
		fields = append(fields, [2]string{"Error", e.ErrorMessage})
	}
	for _, f := range fields {
		fmt.Fprintf(w, "%-10s %s\n", f[0]+":", f[1])
	}

	sep := strings.Repeat("─", 60)
	for _, part := range []struct{ title, body string }{
		{"REQUEST", e.RequestBody},
		{"RESPONSE", e.ResponseBody},
	} {
		body := part.body
		if body == "" {
			body = "(not captured)"
		}
		fmt.Fprintf(w, "\n%s\n%s\n%s\n%s\n", sep, part.title, sep, body)
	}
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show LLM usage per pipeline stage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openAuditStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		w := cmd.OutOrStdout()
		if len(stats) == 0 {
			fmt.Fprintln(w, "No LLM usage recorded yet.")
			return nil
		}
		printUsage(w, stats)

		models, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(models) > 0 {
			fmt.Fprintln(w)
			printCost(w, models)
		}
		return nil
	},
}

func printUsage(w io.Writer, stats []store.UsageStat) {
	rule := strings.Repeat("─", 80)
	row := "%-16v  %6v  %6v  %10v  %10v  %10v  %8v\n"

	fmt.Fprintln(w, "Usage by Stage")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, row, "Purpose", "Calls", "Failed", "Input", "Output", "Total", "Avg Ms")
	fmt.Fprintln(w, rule)

	var total store.UsageStat
	for _, st := range stats {
		fmt.Fprintf(w, row, st.Purpose, st.Calls, st.Failures,
			st.InputTokens, st.OutputTokens, st.InputTokens+st.OutputTokens, st.AvgLatencyMs)
		total.Calls += st.Calls
		total.Failures += st.Failures
		total.InputTokens += st.InputTokens
		total.OutputTokens += st.OutputTokens
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, row, "TOTAL", total.Calls, total.Failures,
		total.InputTokens, total.OutputTokens, total.InputTokens+total.OutputTokens, "")
}

func printCost(w io.Writer, models []store.ModelUsage) {
	rule := strings.Repeat("─", 80)
	row := "%-32v  %6v  %10v  %10v  %10v\n"

	fmt.Fprintln(w, "Estimated Cost (USD)")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, row, "Model", "Calls", "Input", "Output", "Cost")
	fmt.Fprintln(w, rule)

	var sum float64
	var unknown []string
	for _, mu := range models {
		price := "?"
		if cost := llm.LookupCost(mu.Model); cost != nil {
			c := cost.Cost(mu.InputTokens, mu.OutputTokens)
			sum += c
			price = formatCost(c)
		} else {
			unknown = append(unknown, mu.Model)
		}
		fmt.Fprintf(w, row, truncate(mu.Model, 32), mu.Calls, mu.InputTokens, mu.OutputTokens, price)
	}

	fmt.Fprintln(w, rule)
	label := "TOTAL"
	if len(unknown) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Fprintf(w, row, label, "", "", "", formatCost(sum))
	if len(unknown) > 0 {
		fmt.Fprintf(w, "\nPricing unavailable for: %s\n", strings.Join(unknown, ", "))
	}
}

// openAuditStore opens the store for the inspection commands, which have
// nothing to show when persistence is off.
func openAuditStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.New("event recording is disabled")
	}
	return st, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by stage (answer-similarity, coach-line, intent-analysis)")
	llmListCmd.Flags().StringP("session", "s", "", "Filter by session ID")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
