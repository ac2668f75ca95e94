package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "serve":
		return runServe(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "trigger":
		return runTrigger(args[1:])
	case "schedule":
		return runSchedule(args[1:])
	case "leads":
		return runLeads(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "stats":
		return runStats(args[1:])
	case "health":
		return runHealth(args[1:])
	case "hash-password":
		return runHashPassword(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "leadscout CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  leadscout <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve          Start the dashboard API server")
	fmt.Fprintln(os.Stderr, "  ingest         Run one ingestion in-process and print the scored leads")
	fmt.Fprintln(os.Stderr, "  trigger        Start an ingestion on a running server and follow its progress")
	fmt.Fprintln(os.Stderr, "  schedule       Run ingestion on a cron schedule")
	fmt.Fprintln(os.Stderr, "  leads          List or delete stored leads")
	fmt.Fprintln(os.Stderr, "  settings       Read or write dashboard settings")
	fmt.Fprintln(os.Stderr, "  stats          Show lead totals and the lead trend")
	fmt.Fprintln(os.Stderr, "  health         Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  hash-password  Print a bcrypt hash for DASHBOARD_PASSWORD_HASH")
	fmt.Fprintln(os.Stderr, "  daemon         Manage the systemd unit for serve")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"leadscout <command> -h\" for command-specific flags.")
}
