package config

import (
	"flag"
	"io"
)

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "Polling period for both telemetry endpoints")
	fs.StringVar(&cfg.APIHost, "host", cfg.APIHost, "Telemetry service host")
	fs.IntVar(&cfg.APIPort, "port", cfg.APIPort, "Telemetry service port")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request HTTP timeout (0 = none)")
	fs.IntVar(&cfg.Retention, "retention", cfg.Retention, "Keep only the newest N cycles of history (0 = unbounded)")
	fs.IntVar(&cfg.SeriesWindow, "series-window", cfg.SeriesWindow, "Number of recent samples drawn per time-series plot")
	fs.DurationVar(&cfg.RawTransition, "raw-transition", cfg.RawTransition, "Delay before a hidden raw log is unmounted")
	fs.BoolVar(&cfg.AltScreen, "alt-screen", cfg.AltScreen, "Use the terminal alternate screen buffer")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Print raw telemetry as JSON lines instead of drawing the dashboard")
	fs.IntVar(&cfg.DiagnosticsWindow, "diag-window", cfg.DiagnosticsWindow, "Number of recent cycles considered for failure diagnostics")
	fs.IntVar(&cfg.DiagnosticsTopK, "diag-top-k", cfg.DiagnosticsTopK, "Number of failure reasons shown")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path (rotated)")
	fs.IntVar(&cfg.LogMaxSizeMB, "log-max-size", cfg.LogMaxSizeMB, "Rotate the log file after this many megabytes")
	fs.IntVar(&cfg.LogMaxBackups, "log-max-backups", cfg.LogMaxBackups, "Number of rotated log files kept")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory raw-log exports are written to")
}

// Parse builds the configuration from args (without the program name).
// Flags given explicitly win over the YAML file and the environment.
func Parse(name string, args []string, output io.Writer) (Config, error) {
	flagged := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	path := fs.String("config", "", "YAML config file (default $"+EnvConfigFile+")")
	bindFlags(fs, &flagged)
	if err := fs.Parse(args); err != nil {
		return flagged, err
	}

	cfg, err := Load(*path)
	if err != nil {
		return cfg, err
	}

	// Replay explicitly set flags on top of file and environment values.
	overlay := flag.NewFlagSet(name, flag.ContinueOnError)
	overlay.SetOutput(io.Discard)
	bindFlags(overlay, &cfg)
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = overlay.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return cfg, setErr
	}
	return cfg, cfg.Validate()
}
