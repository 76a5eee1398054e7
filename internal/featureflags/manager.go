// Package featureflags evaluates runtime switches configured through
// FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/rockymount114/City-Workflow/internal/models"
)

// Flags consulted by the service.
const (
	Delegation     = "delegation"
	AnalyticsCache = "analytics_cache"
	RealtimeEvents = "realtime_events"
)

// Defaults apply to flags that FEATURE_FLAGS does not mention.
var Defaults = map[string]string{
	Delegation:     "on",
	AnalyticsCache: "on",
	RealtimeEvents: "on",
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "delegation=on,analytics_cache=25%,realtime_events=roles:ADMIN+APPROVER_L2"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config
// string layered over Defaults.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a caller.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic per-user rollout, e.g. 25%)
// - roles:ROLE+ROLE (enabled for callers holding one of the roles)
func (m *Manager) Enabled(name string, p models.Principal) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if roles, ok := strings.CutPrefix(value, "roles:"); ok {
		for _, r := range strings.Split(roles, "+") {
			if strings.EqualFold(strings.TrimSpace(r), string(p.Role)) {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if p.UserID == 0 {
			return false
		}
		return rolloutBucket(name, p.UserID) < pct
	}

	return false
}

// EnabledGlobally reports whether a flag is switched on outright, for
// code paths that have no caller, such as background publishers.
func (m *Manager) EnabledGlobally(name string) bool {
	if m == nil {
		return false
	}
	switch m.flags[normalize(name)] {
	case "on", "true", "1", "100%":
		return true
	}
	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Names lists the configured flags in order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.flags))
	for name := range m.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns evaluated flag status for one caller.
func (m *Manager) Snapshot(p models.Principal) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, p)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
