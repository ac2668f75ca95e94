package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"horse.fit/leadscout/internal/cli"
	"horse.fit/leadscout/internal/progress"
)

const (
	triggerURLEnvVar      = "LEADSCOUT_URL"
	triggerPasswordEnvVar = "LEADSCOUT_PASSWORD"
)

type triggerTarget struct {
	BaseURL  string
	Username string
	Password string
}

type triggerBody struct {
	TimeRangeHours      *int   `json:"timeRangeHours,omitempty"`
	PostCount           *int   `json:"postCount,omitempty"`
	InstructionTemplate string `json:"instructionTemplate,omitempty"`
	From                string `json:"from,omitempty"`
	To                  string `json:"to,omitempty"`
}

func runTrigger(args []string) int {
	fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	baseURL := fs.String("url", "", "Server base URL (default $LEADSCOUT_URL or http://localhost:8090)")
	userName := fs.String("user", "", "Dashboard user (default $DASHBOARD_USER)")
	password := fs.String("password", "", "Dashboard password (default $LEADSCOUT_PASSWORD)")
	flags := addRunFlags(fs)
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "trigger does not accept positional arguments")
		return 2
	}

	req, err := flags.request()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if envLoader != nil {
		// The server may run elsewhere, so a missing .env is not worth a warning.
		_, _ = envLoader.Load()
	}

	target := triggerTarget{
		BaseURL:  firstNonEmpty(*baseURL, os.Getenv(triggerURLEnvVar), "http://localhost:8090"),
		Username: firstNonEmpty(*userName, os.Getenv("DASHBOARD_USER")),
		Password: firstNonEmpty(*password, os.Getenv(triggerPasswordEnvVar)),
	}

	body := triggerBody{InstructionTemplate: req.InstructionTemplate}
	if flagWasSet(fs, "hours") {
		body.TimeRangeHours = &req.TimeRangeHours
	}
	if flagWasSet(fs, "posts") {
		body.PostCount = &req.PostCount
	}
	if req.From != nil {
		body.From = req.From.Format(time.RFC3339)
	}
	if req.To != nil {
		body.To = req.To.Format(time.RFC3339)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	terminal, err := triggerIngest(ctx, http.DefaultClient, target, body, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Trigger failed: %v\n", err)
		return 1
	}

	switch ev := terminal.(type) {
	case progress.Complete:
		fmt.Printf("total=%d new=%d existing=%d\n", ev.TotalPosts, ev.NewPosts, ev.ExistingPosts)
		return 0
	case progress.Failure:
		fmt.Fprintf(os.Stderr, "Ingest failed: %s\n", ev.Message)
		return 1
	default:
		fmt.Fprintln(os.Stderr, "Ingest ended with an unknown event")
		return 1
	}
}

// triggerIngest posts body to the server's ingest route and follows the event
// stream until its terminal event. Progress updates are written to out.
func triggerIngest(ctx context.Context, client *http.Client, target triggerTarget, body triggerBody, out io.Writer) (progress.Event, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(target.BaseURL), "/") + "/api/v1/ingest"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if target.Username != "" || target.Password != "" {
		httpReq.SetBasicAuth(target.Username, target.Password)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return progress.ReadTerminal(resp.Body, func(p progress.Progress) {
		printEvent(out, p)
	})
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
