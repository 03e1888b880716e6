package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpoeymirou/call-me-reminder/internal/client/api"
	"github.com/dpoeymirou/call-me-reminder/internal/client/cache"
	"github.com/dpoeymirou/call-me-reminder/internal/client/config"
	"github.com/dpoeymirou/call-me-reminder/internal/client/reminders"
	"github.com/dpoeymirou/call-me-reminder/internal/client/session"
)

// factory builds the client stack for a command invocation once the flags
// have been parsed. tokenPath is overridable so tests run against a temp
// home.
type factory struct {
	serverURL      string
	logLevel       string
	reconnectDelay time.Duration
	tokenPath      string
}

func NewRootCmd(version, buildDate string) *cobra.Command {
	cfg := config.Load()
	f := &factory{reconnectDelay: cfg.ReconnectDelay}

	root := &cobra.Command{
		Use:          "remindcall",
		Short:        "Manage scheduled phone-call reminders",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.serverURL, "server", cfg.APIBaseURL, "API base URL")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newAuthCmd(f))
	root.AddCommand(newListCmd(f))
	root.AddCommand(newGetCmd(f))
	root.AddCommand(newCreateCmd(f))
	root.AddCommand(newUpdateCmd(f))
	root.AddCommand(newDeleteCmd(f))
	root.AddCommand(newWatchCmd(f))
	return root
}

func (f *factory) logger() *slog.Logger {
	var level slog.Level
	switch f.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (f *factory) session() (*session.Session, error) {
	var s *session.Session
	if f.tokenPath != "" {
		s = session.NewAt(f.tokenPath)
	} else {
		s = session.New()
	}
	if err := s.Hydrate(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func (f *factory) apiClient(sess *session.Session) *api.Client {
	return api.New(f.serverURL, sess, f.logger())
}

// stack wires session, data client, cache and store together.
func (f *factory) stack() (*reminders.Store, *cache.Cache, *session.Session, error) {
	sess, err := f.session()
	if err != nil {
		return nil, nil, nil, err
	}
	c := cache.New(f.logger())
	store := reminders.NewStore(f.apiClient(sess), c)
	return store, c, sess, nil
}
