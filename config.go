/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defaultPlayers = []string{
	"img/players/1.svg",
	"img/players/2.svg",
	"img/players/3.svg",
	"img/players/4.svg",
	"img/players/5.svg",
	"img/players/6.svg",
	"img/players/7.svg",
	"img/players/8.svg",
}

type Config struct {
	assets         string
	bind           string
	configFile     string
	envFile        string
	players        []string
	port           int
	prefix         string
	profile        bool
	seed           int64
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if len(c.players) < 2 {
		return fmt.Errorf("at least two players are required, got %d", len(c.players))
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// applyViper copies values known to v into every flag not set on the command line.
// Flags it sets count as changed, so a later, weaker source cannot override them.
func applyViper(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []error

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}

		value := fmt.Sprintf("%v", v.Get(f.Name))
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}

		if err := fs.Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s: %w", f.Name, err))
		}
	})

	return errors.Join(errs...)
}

// loadConfig resolves flags from, in order of precedence: the command line,
// the environment, an optional .env file, and an optional config file.
func loadConfig(fs *pflag.FlagSet, v *viper.Viper, cfg *Config) error {
	if err := applyViper(fs, v); err != nil {
		return err
	}

	if cfg.envFile != "" {
		if err := godotenv.Load(cfg.envFile); err != nil {
			return fmt.Errorf("unable to load env file %s: %w", cfg.envFile, err)
		}

		if err := applyViper(fs, v); err != nil {
			return err
		}
	}

	if cfg.configFile != "" {
		v.SetConfigFile(cfg.configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", cfg.configFile, err)
		}

		if err := applyViper(fs, v); err != nil {
			return err
		}
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BOTTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "bottle",
		Short:   "A spin-the-bottle party table, served to every screen in the room.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd.Flags(), v, cfg)
		},
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

	fs.StringVar(&cfg.assets, "assets", "", "directory whose files replace the built-in images and sounds (env: BOTTLE_ASSETS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BOTTLE_BIND)")
	fs.StringVarP(&cfg.configFile, "config", "c", "", "path to a yaml, toml or json config file (env: BOTTLE_CONFIG)")
	fs.StringVar(&cfg.envFile, "env-file", "", "path to a .env file to load before reading the environment (env: BOTTLE_ENV_FILE)")
	fs.StringSliceVar(&cfg.players, "players", defaultPlayers, "avatar asset paths, in seating order (env: BOTTLE_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BOTTLE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BOTTLE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BOTTLE_PROFILE)")
	fs.Int64Var(&cfg.seed, "seed", 0, "seed for bottle spins, 0 for a random seed (env: BOTTLE_SEED)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before tables without viewer activity are closed, 0 to disable (env: BOTTLE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BOTTLE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BOTTLE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BOTTLE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BOTTLE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindEnv(f.Name)
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("bottle v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
