package app

import "testing"

func TestRun_ExitCodes(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want int
	}{
		{name: "no args", args: nil, want: 2},
		{name: "help", args: []string{"help"}, want: 0},
		{name: "unknown", args: []string{"crawl"}, want: 2},
		{name: "leads without action", args: []string{"leads"}, want: 2},
		{name: "leads unknown action", args: []string{"leads", "purge"}, want: 2},
		{name: "settings help", args: []string{"settings", "help"}, want: 0},
		{name: "daemon unknown action", args: []string{"daemon", "reload"}, want: 2},
		{name: "ingest help flag", args: []string{"ingest", "-h"}, want: 0},
		{name: "ingest bad hours", args: []string{"ingest", "--hours", "0"}, want: 2},
		{name: "ingest bad format", args: []string{"ingest", "--format", "xml"}, want: 2},
		{name: "trigger positional", args: []string{"trigger", "extra"}, want: 2},
		{name: "schedule bad cron", args: []string{"schedule", "--cron", "every minute"}, want: 2},
		{name: "leads delete both", args: []string{"leads", "delete", "--all", "abc"}, want: 2},
		{name: "leads list bad score", args: []string{"leads", "list", "--min-score", "11"}, want: 2},
		{name: "settings set invalid json", args: []string{"settings", "set", "ai_prompt", "not json"}, want: 2},
		{name: "stats bad bucket", args: []string{"stats", "--bucket", "hour"}, want: 2},
		{name: "daemon install bad port", args: []string{"daemon", "install", "--port", "70000"}, want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Run(tc.args); got != tc.want {
				t.Fatalf("Run(%v) = %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}
