package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/rss-mosaic/app/cfg"
)

func main() {
	parser := cfg.NewParser()
	parser.CommandHandler = runCommand

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"serve", "Serve browsing sessions over HTTP", "Starts the HTTP API: paged latest/explore sessions over all configured feeds.", &serveCommand{}},
		{"fetch", "Aggregate once and print articles", "Fetches every feed once and prints the ordered articles page by page.", &fetchCommand{}},
		{"snapshot", "Save raw feed markup to disk", "Writes each feed's raw XML to <dir>/<host>.xml, skipping unchanged feeds.", &snapshotCommand{}},
		{"archive", "Archive articles by publication day", "Writes <dir>/YYYY/MM/DD/articles.json for every day with articles.", &archiveCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to register command %s: %v\n", c.name, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

// runCommand resolves the global options and sets up logging before any
// command executes.
func runCommand(command flags.Commander, args []string) error {
	if command == nil {
		return nil
	}

	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}

	closeLog, err := cfg.SetupLogger(appCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Debug("Configuration loaded", "version", appCfg.Version, "feeds_dir", appCfg.FeedsDir)

	return command.Execute(args)
}
