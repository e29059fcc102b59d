package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/medops/triage/internal/client"
	"github.com/medops/triage/internal/config"
	"github.com/medops/triage/internal/domain/triage"
	"github.com/medops/triage/internal/platform/auth"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// queueRow is the flattened view of a case printed by the queue command.
type queueRow struct {
	Position    int    `json:"position" yaml:"position"`
	ID          string `json:"id" yaml:"id"`
	PatientRef  string `json:"patient_ref" yaml:"patient_ref"`
	Priority    string `json:"priority" yaml:"priority"`
	TriageLevel int    `json:"triage_level" yaml:"triage_level"`
	RiskScore   int    `json:"risk_score" yaml:"risk_score"`
	WaitMinutes int    `json:"estimated_wait_minutes" yaml:"estimated_wait_minutes"`
	Status      string `json:"status" yaml:"status"`
	Alerts      int    `json:"alerts" yaml:"alerts"`
}

func queueRows(cases []*triage.Case) []queueRow {
	rows := make([]queueRow, 0, len(cases))
	for i, c := range cases {
		rows = append(rows, queueRow{
			Position:    i + 1,
			ID:          c.ID.String(),
			PatientRef:  c.PatientRef,
			Priority:    string(c.Priority),
			TriageLevel: c.TriageLevel,
			RiskScore:   c.RiskScore,
			WaitMinutes: c.EstimatedWaitMinutes,
			Status:      string(c.Status),
			Alerts:      len(c.Alerts),
		})
	}
	return rows
}

// render writes v as indented JSON or YAML.
func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

func printQueueTable(w io.Writer, rows []queueRow) {
	fmt.Fprintf(w, "%-4s %-36s %-16s %-8s %-5s %-5s %-6s %-15s %s\n",
		"POS", "ID", "PATIENT", "PRIORITY", "LEVEL", "SCORE", "WAIT", "STATUS", "ALERTS")
	for _, r := range rows {
		fmt.Fprintf(w, "%-4d %-36s %-16s %-8s %-5d %-5d %-6d %-15s %d\n",
			r.Position, r.ID, r.PatientRef, r.Priority, r.TriageLevel, r.RiskScore, r.WaitMinutes, r.Status, r.Alerts)
	}
}

// readSubmitRequest decodes an intake from a YAML or JSON file, or from
// stdin when path is "-".
func readSubmitRequest(in io.Reader, path string) (triage.SubmitRequest, error) {
	var req triage.SubmitRequest
	if path == "" {
		return req, fmt.Errorf("an input file is required (-f)")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read %s: %w", path, err)
	}
	// JSON documents are valid YAML, so one decoder serves both.
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode %s: %w", path, err)
	}
	return req, nil
}

func addServerFlags(cmd *cobra.Command) {
	server := os.Getenv("TRIAGE_SERVER")
	if server == "" {
		server = "http://localhost:8000"
	}
	cmd.Flags().String("server", server, "Triage server base URL (env TRIAGE_SERVER)")
	cmd.Flags().String("token", os.Getenv("TRIAGE_TOKEN"), "Bearer token (env TRIAGE_TOKEN)")
}

func apiClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	return client.New(server, token)
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an intake file locally without queueing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			output, _ := cmd.Flags().GetString("output")
			req, err := readSubmitRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			a, err := triage.Preview(req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, a)
		},
	}
	cmd.Flags().StringP("file", "f", "", "Intake file (YAML or JSON, - for stdin)")
	cmd.Flags().StringP("output", "o", formatJSON, "Output format: json|yaml")
	return cmd
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the active queue of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, _ := cmd.Flags().GetString("priority")
			output, _ := cmd.Flags().GetString("output")
			if priority != "" && !triage.Priority(priority).Valid() {
				return fmt.Errorf("unknown priority %q", priority)
			}
			cases, err := apiClient(cmd).Queue(cmd.Context(), priority)
			if err != nil {
				return err
			}
			rows := queueRows(cases)
			if output == formatTable {
				printQueueTable(cmd.OutOrStdout(), rows)
				return nil
			}
			return render(cmd.OutOrStdout(), output, rows)
		},
	}
	addServerFlags(cmd)
	cmd.Flags().String("priority", "", "Only cases of this priority (critical|high|medium|low)")
	cmd.Flags().StringP("output", "o", formatTable, "Output format: table|json|yaml")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			stats, err := apiClient(cmd).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, stats)
		},
	}
	addServerFlags(cmd)
	cmd.Flags().StringP("output", "o", formatJSON, "Output format: json|yaml")
	return cmd
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an intake file to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			req, err := readSubmitRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			c, err := apiClient(cmd).Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued case %s: priority=%s level=%d score=%d wait=%dm alerts=%d\n",
				c.ID, c.Priority, c.TriageLevel, c.RiskScore, c.EstimatedWaitMinutes, len(c.Alerts))
			return nil
		},
	}
	addServerFlags(cmd)
	cmd.Flags().StringP("file", "f", "", "Intake file (YAML or JSON, - for stdin)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <case-id> <status>",
		Short: "Move a case to a new status on a running server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := triage.Status(args[1])
			if !to.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			c, err := apiClient(cmd).UpdateStatus(cmd.Context(), args[0], to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Case %s is now %s\n", c.ID, c.Status)
			return nil
		},
	}
	addServerFlags(cmd)
	return cmd
}

// tokenCmd mints a token signed with AUTH_SIGNING_KEY, for operators and
// local testing.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("--subject is required")
			}
			tok, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject (user id)")
	cmd.Flags().StringSlice("roles", []string{auth.RoleNurse}, "Roles to grant")
	cmd.Flags().Duration("ttl", 8*time.Hour, "Token lifetime")
	return cmd
}
