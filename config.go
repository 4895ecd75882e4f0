package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	discussionTime time.Duration
	hintTime       time.Duration
	imposters      int
	port           int
	prefix         string
	profile        bool
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	voteTime       time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.imposters < 1 {
		return fmt.Errorf("invalid imposter count (must be at least 1): %d", c.imposters)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("IMPOSTERBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "imposterbox",
		Short:         "A real-time multiplayer imposter word game, served from a single binary.",
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

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: IMPOSTERBOX_BIND)")
	fs.DurationVar(&cfg.discussionTime, "discussion-time", 60*time.Second, "advisory discussion phase length sent to clients (env: IMPOSTERBOX_DISCUSSION_TIME)")
	fs.DurationVar(&cfg.hintTime, "hint-time", 15*time.Second, "advisory hint turn length sent to clients (env: IMPOSTERBOX_HINT_TIME)")
	fs.IntVar(&cfg.imposters, "imposters", 1, "imposters per round, capped at half the connected players (env: IMPOSTERBOX_IMPOSTERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: IMPOSTERBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: IMPOSTERBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: IMPOSTERBOX_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: IMPOSTERBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: IMPOSTERBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: IMPOSTERBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: IMPOSTERBOX_VERSION)")
	fs.DurationVar(&cfg.voteTime, "vote-time", 30*time.Second, "advisory voting phase length sent to clients (env: IMPOSTERBOX_VOTE_TIME)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("imposterbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
