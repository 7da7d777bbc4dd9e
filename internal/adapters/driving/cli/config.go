package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// knownKeys documents the configuration surface for `config show`.
var knownKeys = []string{
	"embedding.provider",
	"embedding.model",
	"embedding.base_url",
	"embedding.api_key",
	"embedding.dimensions",
	"cleanup.enabled",
	"cleanup.interval",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage corpus configuration",
	Long: `View and change configuration stored in config.toml.

Keys use dot notation, e.g. embedding.model or cleanup.interval.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Sets a configuration value and saves the file.

Values parse as bool or number where possible, otherwise as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := ensureConfig()
	if err != nil {
		return err
	}

	keys := append([]string(nil), knownKeys...)
	for _, key := range cfg.Keys() {
		if !containsKey(keys, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	cmd.Printf("Configuration (%s)\n\n", cfg.Path())
	for _, key := range keys {
		value, ok := cfg.Get(key)
		if !ok {
			cmd.Printf("  %-24s (not set)\n", key)
			continue
		}
		if strings.HasSuffix(key, "api_key") {
			value = maskSecret(fmt.Sprint(value))
		}
		cmd.Printf("  %-24s %v\n", key, value)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := ensureConfig()
	if err != nil {
		return err
	}
	value, ok := cfg.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Printf("%v\n", value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := ensureConfig()
	if err != nil {
		return err
	}
	key, raw := args[0], args[1]
	if key == "" {
		return errors.New("key must not be empty")
	}

	if err := cfg.Set(key, parseConfigValue(raw)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

// parseConfigValue keeps bools and numbers typed in the TOML file.
func parseConfigValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// maskSecret hides all but the last four characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
