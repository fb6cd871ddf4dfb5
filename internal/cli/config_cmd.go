// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - config show, init, path and get.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/idlesync/internal/config"
	"github.com/jeranaias/idlesync/internal/util"
)

// errUnknownKey marks a "config get" key that names no field.
var errUnknownKey = errors.New("unknown config key")

func runConfig(args Args, stdout io.Writer) error {
	p := NewArgParser(args.Raw)
	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "show":
		cfg, path, err := loadConfig(args)
		if err != nil {
			return err
		}
		return OutputJSON(stdout, args.JSON, "config show", func() (any, error) {
			if !args.JSON {
				fmt.Fprintf(stdout, "# %s\n%s", path, cfg.String())
			}
			return cfg, nil
		})

	case "path":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		return OutputJSON(stdout, args.JSON, "config path", func() (any, error) {
			if !args.JSON {
				fmt.Fprintln(stdout, path)
			}
			return map[string]string{"path": path}, nil
		})

	case "init":
		return runConfigInit(args, p.BoolFlag("force"), stdout)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("KEY", "idlesync config get timeouts.idle")
		}
		cfg, _, err := loadConfig(args)
		if err != nil {
			return err
		}
		val, err := cfg.Get(key)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errUnknownKey, key, err)
		}
		return OutputJSON(stdout, args.JSON, "config get", func() (any, error) {
			if !args.JSON {
				fmt.Fprintln(stdout, formatValue(val))
			}
			return map[string]any{"key": key, "value": formatValue(val)}, nil
		})

	default:
		return NewValidationError("config subcommand", sub, "expected show, init, path or get")
	}
}

// runConfigInit writes the default configuration. An existing file is
// kept unless force is set.
func runConfigInit(args Args, force bool, stdout io.Writer) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil && !force {
		return &ConfigError{Path: path, Err: errors.New("already exists (use --force to overwrite)")}
	}
	cfg := config.Default()
	if err := config.SaveTOML(cfg, path); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return OutputJSON(stdout, args.JSON, "config init", func() (any, error) {
		if !args.JSON && !args.Quiet {
			fmt.Fprintf(stdout, "%s wrote %s\n", SuccessStyle.Render("[OK]"), path)
		}
		return map[string]string{"path": path}, nil
	})
}

func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return util.ExpandPath(args.ConfigPath), nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
