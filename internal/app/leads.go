package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/leadscout/internal/cli"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/leads"
)

func runLeads(args []string) int {
	if len(args) == 0 {
		printLeadsUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printLeadsUsage()
		return 0
	case "list":
		return runLeadsList(args[1:])
	case "delete":
		return runLeadsDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown leads action: %s\n\n", args[0])
		printLeadsUsage()
		return 2
	}
}

func runLeadsList(args []string) int {
	fs := flag.NewFlagSet("leads list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	subreddit := fs.String("subreddit", "", "Only leads from this subreddit")
	minScore := fs.Int("min-score", 0, "Only leads scoring at least this much (1-10)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "leads list does not accept positional arguments")
		return 2
	}
	if *minScore != 0 && (*minScore < leads.MinScore || *minScore > leads.MaxScore) {
		fmt.Fprintf(os.Stderr, "--min-score must be between %d and %d\n", leads.MinScore, leads.MaxScore)
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	rows, err := pool.ListLeads(ctx, db.LeadFilter{
		Subreddit: strings.TrimSpace(*subreddit),
		MinScore:  *minScore,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list leads: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"items": rows, "count": len(rows)}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if len(rows) == 0 {
		fmt.Println("No leads found.")
		return 0
	}
	if err := writeTable(leadTableHeaders, leadTableRows(rows)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render leads table: %v\n", err)
		return 1
	}
	return 0
}

func runLeadsDelete(args []string) int {
	fs := flag.NewFlagSet("leads delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	all := fs.Bool("all", false, "Delete every stored lead")
	force := fs.Bool("force", false, "Skip the confirmation prompt for --all")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	redditID := strings.TrimSpace(fs.Arg(0))
	switch {
	case *all && fs.NArg() != 0:
		fmt.Fprintln(os.Stderr, "leads delete takes either a reddit id or --all, not both")
		return 2
	case !*all && fs.NArg() != 1:
		fmt.Fprintln(os.Stderr, "usage: leadscout leads delete <reddit_id> | --all [--force]")
		return 2
	case !*all && redditID == "":
		fmt.Fprintln(os.Stderr, "reddit id must not be empty")
		return 2
	}

	if *all && !*force {
		confirmed, err := confirmDangerousAction("Delete ALL stored leads?")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !confirmed {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return 1
		}
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	if *all {
		deleted, err := pool.DeleteAllLeads(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete leads: %v\n", err)
			return 1
		}
		fmt.Printf("Deleted %d leads\n", deleted)
		return 0
	}

	found, err := pool.DeleteLead(ctx, redditID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete lead %s: %v\n", redditID, err)
		return 1
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Lead %s not found\n", redditID)
		return 1
	}
	fmt.Printf("Deleted lead %s\n", redditID)
	return 0
}

func printLeadsUsage() {
	fmt.Fprintln(os.Stderr, "leadscout leads")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  leadscout leads list [--subreddit <name>] [--min-score <n>] [--format table|json]")
	fmt.Fprintln(os.Stderr, "  leadscout leads delete <reddit_id>")
	fmt.Fprintln(os.Stderr, "  leadscout leads delete --all [--force]")
}
