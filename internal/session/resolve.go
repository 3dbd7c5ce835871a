package session

import "github.com/matheus3301/tgp/internal/config"

const DefaultAccountName = "main"

// Resolve determines the active account name using precedence:
// 1. flagOverride (--account flag)
// 2. config.toml default_account
// 3. "main"
func Resolve(flagOverride string) string {
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		cfg = nil
	}
	return ResolveWith(flagOverride, cfg)
}

// ResolveWith applies the same precedence to an already loaded config.
func ResolveWith(flagOverride string, cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg != nil && cfg.DefaultAccount != "" {
		return cfg.DefaultAccount
	}
	return DefaultAccountName
}
