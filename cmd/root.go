package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/telemetry"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	rec     telemetry.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "asm",
	Short: "Attack surface reconnaissance and risk scoring",
	Long: `asm runs a fixed set of reconnaissance stages against each target domain
(subdomain enumeration, liveness, DNS, WHOIS, port scan, technology fingerprinting,
TLS inspection, security headers, breach lookup), merges the results into one
findings record, scores it, and writes a report per domain.

COMMANDS:
  asm scan example.com            - Scan one or more domains
  asm scan --input domains.csv    - Scan the "domain" column of a CSV file
  asm graph amass.txt             - Convert amass relationship output to JSON
  asm serve                       - Serve persisted reports over HTTP
  asm version                     - Print version information`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		if err := bindCommandFlags(cmd); err != nil {
			return err
		}
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		rec, err = telemetry.New(cmd.Context(), cfg.Telemetry)
		if err != nil {
			log.Warnw("Telemetry disabled",
				"error", err,
			)
			rec = telemetry.Noop()
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rec != nil {
			if err := rec.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to flush telemetry: %v\n", err)
			}
		}
		if log != nil {
			// Sync errors on stdout/stderr are expected on Linux
			if err := log.Sync(); err != nil {
				if err.Error() != "sync /dev/stdout: invalid argument" && err.Error() != "sync /dev/stderr: invalid argument" {
					fmt.Fprintf(os.Stderr, "Warning: failed to sync logger: %v\n", err)
				}
			}
		}
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Unprefixed names are accepted for compatibility with existing .env files.
	viper.BindEnv("summary.api_key", "ASM_SUMMARY_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("breach.api_key", "ASM_BREACH_API_KEY", "HAVEIBEENPWNED_API_KEY")
	viper.BindEnv("input.csv", "ASM_INPUT_CSV", "INPUT_CSV")
}

const viperKeyAnnotation = "viper_key"

// bindFlag marks a command flag as the source of a config key. Binding happens when the
// command runs, so commands may share flag names that map to the same key.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if err := cmd.Flags().SetAnnotation(flag, viperKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func bindCommandFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[viperKeyAnnotation]
		if !ok || err != nil {
			return
		}
		err = viper.BindPFlag(keys[0], f)
	})
	return err
}

// initConfig layers defaults, .env, config file, environment and flags into cfg.
func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	viper.SetEnvPrefix("ASM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvs(reflect.TypeOf(config.Config{}), "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	cfg = config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg.Validate()
}

// bindEnvs registers every mapstructure key so AutomaticEnv sees keys that have no
// default or flag. Keys bound explicitly in init keep their extra names.
func bindEnvs(t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if field.Type.Kind() == reflect.Struct {
			bindEnvs(field.Type, key)
			continue
		}
		switch key {
		case "summary.api_key", "breach.api_key", "input.csv":
			continue
		}
		viper.BindEnv(key)
	}
}
