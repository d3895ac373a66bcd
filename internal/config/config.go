// Package config holds the resolved, immutable configuration consumed by
// the rest of the core. Loading config.toml itself is out of scope; this
// package only assembles a ResolvedConfig from environment variables and
// defaults, the way a thin front-end would hand it to the driver.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FsMode selects how the filesystem boundary resolves paths.
type FsMode string

const (
	FsModeRestricted   FsMode = "restricted"
	FsModeUnrestricted FsMode = "unrestricted"
)

// ApprovalPolicy selects whether approval-gated tools may run unattended.
type ApprovalPolicy string

const (
	ApprovalNever     ApprovalPolicy = "never"
	ApprovalOnRequest ApprovalPolicy = "on-request"
	ApprovalAlways    ApprovalPolicy = "always"
)

// ReasoningEffort is the model's reasoning-effort tag.
type ReasoningEffort string

const (
	ReasoningNone    ReasoningEffort = "none"
	ReasoningMinimal ReasoningEffort = "minimal"
	ReasoningLow     ReasoningEffort = "low"
	ReasoningMedium  ReasoningEffort = "medium"
	ReasoningHigh    ReasoningEffort = "high"
)

func ValidFsMode(v string) bool {
	return v == string(FsModeRestricted) || v == string(FsModeUnrestricted)
}

func ValidApprovalPolicy(v string) bool {
	switch ApprovalPolicy(v) {
	case ApprovalNever, ApprovalOnRequest, ApprovalAlways:
		return true
	default:
		return false
	}
}

func ValidReasoningEffort(v string) bool {
	switch ReasoningEffort(v) {
	case ReasoningNone, ReasoningMinimal, ReasoningLow, ReasoningMedium, ReasoningHigh:
		return true
	default:
		return false
	}
}

// ResolvedConfig is the immutable configuration object described in
// spec.md §3. It is constructed once and never mutated; slash-command
// overrides live in session.State instead.
type ResolvedConfig struct {
	BearerToken     string
	DefaultModel    string
	ReasoningEffort ReasoningEffort
	Verbosity       string
	FsMode          FsMode
	ApprovalPolicy  ApprovalPolicy
	LogLevel        string
	DataRoot        string
	BaseURL         string
	RequestTimeout  time.Duration
	LivefeedAddr    string
}

// Load assembles a ResolvedConfig from the environment, mirroring the
// env/envInt/envPath helper style the rest of the corpus uses for this
// concern.
func Load() (ResolvedConfig, error) {
	cfg := ResolvedConfig{
		BearerToken:     os.Getenv("LINCONA_BEARER_TOKEN"),
		DefaultModel:    env("LINCONA_MODEL", "gpt-5"),
		ReasoningEffort: ReasoningEffort(env("LINCONA_REASONING_EFFORT", string(ReasoningMedium))),
		Verbosity:       env("LINCONA_VERBOSITY", "medium"),
		FsMode:          FsMode(env("LINCONA_FS_MODE", string(FsModeRestricted))),
		ApprovalPolicy:  ApprovalPolicy(env("LINCONA_APPROVAL_POLICY", string(ApprovalOnRequest))),
		LogLevel:        env("LINCONA_LOG_LEVEL", "info"),
		DataRoot:        envPath("LINCONA_HOME", defaultDataRoot()),
		BaseURL:         env("LINCONA_BASE_URL", "https://api.openai.com/v1"),
		RequestTimeout:  time.Duration(envInt("LINCONA_REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		LivefeedAddr:    env("LINCONA_LIVEFEED_ADDR", ""),
	}

	if !ValidFsMode(string(cfg.FsMode)) {
		return ResolvedConfig{}, fmt.Errorf("invalid fs mode %q", cfg.FsMode)
	}
	if !ValidApprovalPolicy(string(cfg.ApprovalPolicy)) {
		return ResolvedConfig{}, fmt.Errorf("invalid approval policy %q", cfg.ApprovalPolicy)
	}
	if !ValidReasoningEffort(string(cfg.ReasoningEffort)) {
		return ResolvedConfig{}, fmt.Errorf("invalid reasoning effort %q", cfg.ReasoningEffort)
	}
	return cfg, nil
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".lincona"
	}
	return filepath.Join(home, ".lincona")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envPath(k, def string) string {
	v := env(k, def)
	if v == "" || filepath.IsAbs(v) {
		return v
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return v
	}
	return abs
}

// SplitCSV mirrors the teacher's CSV-env-var convention for list-valued
// configuration.
func SplitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
