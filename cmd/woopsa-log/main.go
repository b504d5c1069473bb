// Command woopsa-log is a tool for viewing and analyzing Woopsa protocol
// capture files.
//
// Capture files are written by woopsa-server and woopsa-client when run with
// the --protocol-log flag. They record subscription channel lifecycles,
// subscription registrations, notification batches, client state changes and
// errors.
//
// Usage:
//
//	woopsa-log <command> [flags] <file.wlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only client-side events
//	woopsa-log view --role client server.wlog
//
//	# Keep the events of one channel
//	woopsa-log filter --channel-id 1234 -o channel.wlog server.wlog
//
//	# Show statistics
//	woopsa-log stats server.wlog
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/woopsa-protocol/woopsa-go/cmd/woopsa-log/commands"
)

const usage = `woopsa-log - Woopsa Protocol Log Analyzer

Usage:
  woopsa-log <command> [flags] <file.wlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "woopsa-log <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates the flag set of a command.
func newFlagSet(name, summary, synopsis string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "woopsa-log %s - %s\n\nUsage:\n  woopsa-log %s\n\nFlags:\n", name, summary, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// logPath returns the single positional argument or exits.
func logPath(fs *pflag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View log file in human-readable format", "view [flags] <file.wlog>")
	layer := fs.String("layer", "", "Filter by layer (transport, channel, service)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (channel, subscription, notification, state, error)")
	role := fs.String("role", "", "Filter by local role (server, client)")
	path := logPath(fs, args)

	var filter commands.ViewFilter
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}
	if *role != "" {
		r, err := commands.ParseRoleFlag(*role)
		if err != nil {
			fail(err)
		}
		filter.Role = &r
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export log file to JSONL or CSV format", "export [flags] <file.wlog>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "Output file (default: stdout)")
	path := logPath(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter log file and write to new file", "filter [flags] <file.wlog>")
	var opts commands.FilterOptions
	fs.StringVarP(&opts.Output, "output", "o", "", "Output file (required)")
	fs.StringVar(&opts.SessionID, "session-id", "", "Filter by session ID")
	fs.Int64Var(&opts.ChannelID, "channel-id", 0, "Filter by subscription channel ID")
	fs.Int64Var(&opts.SubscriptionID, "subscription-id", 0, "Filter subscription events by subscription ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, channel, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (channel, subscription, notification, state, error)")
	fs.StringVar(&opts.Role, "role", "", "Filter by local role (server, client)")
	fs.StringVar(&opts.Path, "path", "", "Filter subscription events by path or parent path")
	fs.StringVar(&opts.ChannelAction, "channel-action", "", "Filter by channel action (created, closed, expired, invalidated)")
	fs.StringVar(&opts.SubscriptionAction, "subscription-action", "", "Filter by subscription action (registered, unregistered, failed, lost)")
	fs.BoolVar(&opts.Lost, "lost", false, "Only notification batches that lost notifications")
	path := logPath(fs, args)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the log file", "stats <file.wlog>")
	path := logPath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
