package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sandgraal/retro-games-sub003/internal/config"
)

func runValidateConfig(args []string) int {
	fs := flag.NewFlagSet("validate-config", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to the ingestion config (JSON or YAML)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	path := strings.TrimSpace(*configPath)
	if path == "" {
		fmt.Fprintln(os.Stderr, "--config is required")
		return 2
	}

	cfg, err := config.LoadIngest(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
		return 1
	}

	fmt.Printf(
		"config valid path=%s sources=%d schedule_minutes=%d fuzzy_threshold=%.3f\n",
		path,
		len(cfg.Sources),
		cfg.ScheduleMinutes,
		cfg.FuzzyThreshold,
	)
	return 0
}
