package main

import (
	"flag"
	"fmt"
	"os"

	"log/slog"

	"github.com/Deven-0012/Cloud-281/cmd"
	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/logging"
)

func main() {
	logging.Init()

	configPath := ""
	fs := flag.NewFlagSet("carwatch", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "path to config file")
	// Only peek at --config; cobra owns everything else.
	_ = fs.Parse(filterConfigFlag(os.Args[1:]))

	settings, err := conf.Load(configPath)
	if err != nil {
		logging.Fatal("error loading configuration", "error", err)
	}

	applyLogLevel(settings)

	if settings.Main.LogFile != "" {
		closeLog, err := logging.SetFileOutput(settings.Main.LogFile)
		if err != nil {
			logging.Fatal("error opening log file", "path", settings.Main.LogFile, "error", err)
		}
		defer closeLog() //nolint:errcheck
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// filterConfigFlag keeps only the --config flag and its value so the early
// flag parse never chokes on subcommand flags.
func filterConfigFlag(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--config" || a == "-config" {
			out = append(out, a)
			if i+1 < len(args) {
				out = append(out, args[i+1])
				i++
			}
			continue
		}
		if len(a) > 9 && a[:9] == "--config=" {
			out = append(out, a)
		}
	}
	return out
}

func applyLogLevel(settings *conf.Settings) {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
		return
	}
	switch settings.Main.LogLevel {
	case "trace":
		logging.SetLevel(logging.LevelTrace)
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	default:
		logging.SetLevel(slog.LevelInfo)
	}
}
