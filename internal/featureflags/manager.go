// Package featureflags evaluates rollout flags configured as "name=value" pairs.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags the application consults.
const (
	// AvatarWebP stores uploaded avatars as webp instead of jpeg.
	AvatarWebP = "avatar_webp"
	// SimilarPosts enables GET /posts/:id/similar.
	SimilarPosts = "similar_posts"
)

// Defaults apply to flags absent from the configured list.
var Defaults = map[string]string{
	AvatarWebP:   "off",
	SimilarPosts: "on",
}

type rule struct {
	raw     string
	on      bool
	percent int // -1 for plain on/off
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "avatar_webp=25%,similar_posts=off"
type Manager struct {
	rules map[string]rule
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Unparsable pairs are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule, len(Defaults))
	for name, value := range Defaults {
		if r, ok := parseRule(value); ok {
			rules[name] = r
		}
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = normalize(key)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}

	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	value = normalize(value)
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(pct, 0), 100)}, true
}

// Enabled returns whether a flag is enabled for a given user.
// Percentage rollouts bucket users deterministically; anonymous callers
// (userID 0) only see fully rolled-out flags.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent < 0:
		return r.on
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

// Raw returns the configured value of every known flag.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
