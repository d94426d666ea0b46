package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// treasuryctl is the operator tool for the KIP Treasury daemon: budget
// inspection, ROI reviews and the emergency circuit breaker.

type client struct {
	server string
	http   *http.Client
}

func (c *client) do(method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.server+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return data, nil
}

func printJSON(out io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, buf.String())
	return nil
}

func newRootCommand() *cobra.Command {
	c := &client{http: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:           "treasuryctl",
		Short:         "Operator CLI for the KIP Treasury",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.server, "server", "http://localhost:8090", "treasuryd base URL")

	var seedCents, dailyLimit, actionLimit int64
	initCmd := &cobra.Command{
		Use:   "init <agent-id>",
		Short: "Provision an agent budget (idempotent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.do("POST", "/api/v1/budgets", map[string]interface{}{
				"agent_id":           args[0],
				"seed_cents":         seedCents,
				"daily_limit_cents":  dailyLimit,
				"action_limit_cents": actionLimit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	initCmd.Flags().Int64Var(&seedCents, "seed", 0, "seed amount in cents (0 = server default)")
	initCmd.Flags().Int64Var(&dailyLimit, "daily-limit", 0, "daily limit in cents (0 = server default)")
	initCmd.Flags().Int64Var(&actionLimit, "action-limit", 0, "per-action limit in cents (0 = server default)")

	budgetCmd := &cobra.Command{
		Use:   "budget <agent-id>",
		Short: "Show an agent's budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.do("GET", "/api/v1/budgets/"+args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <agent-id> <amount-cents>",
		Short: "Run a spend authorization check",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			data, err := c.do("POST", "/api/v1/treasury/check-funds", map[string]interface{}{
				"agent_id":     args[0],
				"amount_cents": amount,
				"description":  "treasuryctl check",
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	var limit, offset int64
	historyCmd := &cobra.Command{
		Use:   "history <agent-id>",
		Short: "Show an agent's transaction history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/treasury/transactions/%s?limit=%d&offset=%d", args[0], limit, offset)
			data, err := c.do("GET", path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	historyCmd.Flags().Int64Var(&limit, "limit", 50, "max entries")
	historyCmd.Flags().Int64Var(&offset, "offset", 0, "pagination offset")

	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show system-wide economic analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.do("GET", "/api/v1/treasury/analytics", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	var periodDays int
	roiCmd := &cobra.Command{
		Use:   "roi <agent-id>",
		Short: "Run an ROI performance review for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/treasury/agents/%s/roi-adjustment?period_days=%d", args[0], periodDays)
			data, err := c.do("POST", path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	roiCmd.Flags().IntVar(&periodDays, "days", 7, "trailing window in days")

	var reason string
	freezeCmd := &cobra.Command{
		Use:   "freeze",
		Short: "Halt all agent spending (emergency circuit breaker)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.do("POST", "/api/v1/admin/freeze", map[string]string{"reason": reason})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	freezeCmd.Flags().StringVar(&reason, "reason", "", "reason for the freeze (required)")
	freezeCmd.MarkFlagRequired("reason")

	var unfreezeReason string
	unfreezeCmd := &cobra.Command{
		Use:   "unfreeze",
		Short: "Lift the emergency freeze",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.do("POST", "/api/v1/admin/unfreeze", map[string]string{"reason": unfreezeReason})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	unfreezeCmd.Flags().StringVar(&unfreezeReason, "reason", "", "reason for lifting the freeze (required)")
	unfreezeCmd.MarkFlagRequired("reason")

	root.AddCommand(initCmd, budgetCmd, checkCmd, historyCmd, analyticsCmd, roiCmd, freezeCmd, unfreezeCmd)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
