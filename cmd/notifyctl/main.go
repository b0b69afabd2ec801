package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	clog "github.com/charmbracelet/log"
	"github.com/saransh1220/novel-notify/pkg/realtime"
	"github.com/spf13/cobra"
)

var (
	unreadStyle = lipgloss.NewStyle().Bold(true)
	typeStyle   = lipgloss.NewStyle().Faint(true)
)

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	cfg    cliConfig
	out    io.Writer
	logger *slog.Logger
}

func (a *app) api() *realtime.APIClient {
	return realtime.NewAPIClient(a.cfg.Server, realtime.StaticToken(a.cfg.Token))
}

func newLogger(w io.Writer, level string) *slog.Logger {
	handler := clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           parseLevel(level),
		Prefix:          "notifyctl",
	})
	return slog.New(handler)
}

func parseLevel(level string) clog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return clog.DebugLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}
	var (
		configPath string
		flags      cliConfig
	)

	root := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Read and watch notifications from a novel-notify server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.applyEnv()

			f := cmd.Flags()
			if f.Changed("server") {
				cfg.Server = flags.Server
			}
			if f.Changed("token") {
				cfg.Token = flags.Token
			}
			if f.Changed("transport") {
				cfg.Transport = flags.Transport
			}
			if f.Changed("log-level") {
				cfg.LogLevel = flags.LogLevel
			}
			if err := cfg.validate(); err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = newLogger(errOut, cfg.LogLevel)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultConfigPath(), "path to the TOML config file")
	pf.StringVar(&flags.Server, "server", defaultServer, "server base URL")
	pf.StringVar(&flags.Token, "token", "", "bearer token (or "+envToken+")")
	pf.StringVar(&flags.Transport, "transport", string(realtime.TransportSSE), "push transport: sse or websocket")
	pf.StringVar(&flags.LogLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		newListCmd(a),
		newUnreadCmd(a),
		newReadCmd(a),
		newReadAllCmd(a),
		newDeleteCmd(a),
		newPublishCmd(a),
		newWatchCmd(a),
	)
	return root
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		clog.Error(err)
		os.Exit(1)
	}
}
