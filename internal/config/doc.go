// Package config loads and saves the apsta configuration file.
//
// The file is YAML, versioned, and lives in the platform configuration
// directory:
//   - Linux: $XDG_CONFIG_HOME/apsta/config.yaml or $HOME/.config/apsta/config.yaml
//   - macOS: $HOME/.config/apsta/config.yaml
//   - Windows: %LOCALAPPDATA%\apsta\config.yaml
//
// Precedence, lowest first: built-in defaults, the file, APSTA_* environment
// variables, then command line flags that were explicitly given. The last
// two are applied by Overlay through viper:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	v, err := config.NewViper(cmd.Flags(), map[string]string{config.KeySTASSID: "ssid"})
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Overlay(v); err != nil {
//	    return err
//	}
//
// Durations are written as Go duration strings ("5s") and disconnect
// reasons as labels ("NO_AP_FOUND") or numeric codes.
//
// Passwords are stored in plain text; Save writes the file with mode 0600.
package config
