package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/leadscout/internal/cli"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/globaltime"
	"horse.fit/leadscout/internal/httpapi"
)

func runSettings(args []string) int {
	if len(args) == 0 {
		printSettingsUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printSettingsUsage()
		return 0
	case "get":
		return runSettingsGet(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown settings action: %s\n\n", args[0])
		printSettingsUsage()
		return 2
	}
}

func runSettingsGet(args []string) int {
	fs := flag.NewFlagSet("settings get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Second, "Query timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		fmt.Fprintln(os.Stderr, "usage: leadscout settings get <key>")
		return 2
	}
	key := strings.TrimSpace(fs.Arg(0))

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	record, err := pool.GetSetting(ctx, key)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Setting %s is not set\n", key)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to load setting %s: %v\n", key, err)
		return 1
	}

	if err := printJSON(settingOutput(record)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func runSettingsSet(args []string) int {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Second, "Query timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 || strings.TrimSpace(fs.Arg(0)) == "" {
		fmt.Fprintln(os.Stderr, "usage: leadscout settings set <key> <json-value>")
		return 2
	}

	key := strings.TrimSpace(fs.Arg(0))
	value, err := parseSettingValue(key, fs.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	record, err := pool.UpsertSetting(ctx, key, value, globaltime.UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save setting %s: %v\n", key, err)
		return 1
	}

	if err := printJSON(settingOutput(record)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

// parseSettingValue requires raw to be a single JSON value acceptable for key.
func parseSettingValue(key, raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("value for %s must be valid JSON (quote strings, e.g. '\"text\"')", key)
	}
	value := json.RawMessage(trimmed)
	if msg := httpapi.ValidateKnownSetting(key, value); msg != "" {
		return nil, fmt.Errorf("value for %s %s", key, msg)
	}
	return value, nil
}

func settingOutput(record *db.SettingRecord) map[string]any {
	return map[string]any{
		"key":        record.Key,
		"value":      record.Value,
		"updated_at": formatUTCTimestamp(record.UpdatedAt),
	}
}

func printSettingsUsage() {
	fmt.Fprintln(os.Stderr, "leadscout settings")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  leadscout settings get <key>")
	fmt.Fprintln(os.Stderr, "  leadscout settings set <key> <json-value>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Known keys:")
	fmt.Fprintln(os.Stderr, "  ai_prompt            string   instruction template used by ingest and schedule")
	fmt.Fprintln(os.Stderr, "  ai_prompt_feedback   string   last feedback given to prompt analysis")
	fmt.Fprintln(os.Stderr, "  search_parameters    object   {\"timeRangeHours\": 24, \"postCount\": 25}")
}
