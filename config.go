/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/wordrace/internal/challenge"
)

type Config struct {
	bind          string
	contentFile   string
	databaseURL   string
	gracePeriod   time.Duration
	jwtIssuer     string
	jwtSecret     string
	logFormat     string
	messagesDir   string
	playerTimeout time.Duration
	port          int
	prefix        string
	profile       bool
	questionCount int
	quizLimit     time.Duration
	redisURL      string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
	wordRaceLimit time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.questionCount < 1 || c.questionCount > 50 {
		return fmt.Errorf("invalid question count (must be between 1-50 inclusive): %d", c.questionCount)
	}

	for name, d := range map[string]time.Duration{
		"--grace-period":         c.gracePeriod,
		"--player-timeout":       c.playerTimeout,
		"--quiz-time-limit":      c.quizLimit,
		"--word-race-time-limit": c.wordRaceLimit,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s (must be positive): %s", name, d)
		}
	}

	switch c.logFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format (must be console or json): %q", c.logFormat)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) hubOptions() challenge.Options {
	return challenge.Options{
		QuestionCount: c.questionCount,
		TimeLimits: map[challenge.GameType]time.Duration{
			challenge.WordRace: c.wordRaceLimit,
			challenge.Quiz:     c.quizLimit,
		},
		Grace: c.gracePeriod,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wordrace",
		Short:         "Head-to-head German word races and vocabulary quizzes over WebSockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDRACE_BIND)")
	fs.StringVar(&cfg.contentFile, "content-file", "", "yaml question bank to use instead of the built-in one (env: WORDRACE_CONTENT_FILE)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres dsn for questions and match history (env: WORDRACE_DATABASE_URL)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", 20*time.Second, "time the second player gets after the first one finishes (env: WORDRACE_GRACE_PERIOD)")
	fs.StringVar(&cfg.jwtIssuer, "jwt-issuer", "", "required token issuer, if any (env: WORDRACE_JWT_ISSUER)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HS256 secret for player tokens; anonymous cookies are used when unset (env: WORDRACE_JWT_SECRET)")
	fs.StringVar(&cfg.logFormat, "log-format", "console", "log encoding, console or json (env: WORDRACE_LOG_FORMAT)")
	fs.StringVar(&cfg.messagesDir, "messages-dir", "", "directory of yaml files overriding player-facing messages (env: WORDRACE_MESSAGES_DIR)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 10*time.Minute, "time before idle connections are closed (env: WORDRACE_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WORDRACE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WORDRACE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WORDRACE_PROFILE)")
	fs.IntVar(&cfg.questionCount, "question-count", 5, "questions per challenge (env: WORDRACE_QUESTION_COUNT)")
	fs.DurationVar(&cfg.quizLimit, "quiz-time-limit", 90*time.Second, "time limit of a quiz (env: WORDRACE_QUIZ_TIME_LIMIT)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis url for player profiles; kept in memory when unset (env: WORDRACE_REDIS_URL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WORDRACE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WORDRACE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WORDRACE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WORDRACE_VERSION)")
	fs.DurationVar(&cfg.wordRaceLimit, "word-race-time-limit", 60*time.Second, "time limit of a word race (env: WORDRACE_WORD_RACE_TIME_LIMIT)")

	bindEnv(fs)

	cmd.AddCommand(newTokenCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordrace v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// bindEnv lets WORDRACE_* environment variables supply any flag left unset
// on the command line.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("WORDRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
