package detect

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/your-org/execmon/internal/config"
	"github.com/your-org/execmon/internal/model"
)

type Alert struct {
	Timestamp   time.Time   `json:"timestamp"`
	RuleID      string      `json:"rule_id"`
	Description string      `json:"description"`
	Event       model.Event `json:"event"`
}

type compiledRule struct {
	id          string
	description string

	commRe     *regexp.Regexp
	filenameRe *regexp.Regexp
	names      []string
}

type Engine struct {
	rules []*compiledRule
}

func NewEngine(cfg *config.Config) (*Engine, error) {
	var compiled []*compiledRule
	for _, r := range cfg.Rules {
		cr := &compiledRule{
			id:          r.ID,
			description: r.Description,
		}
		if cr.id == "" {
			return nil, fmt.Errorf("rule without id")
		}
		if r.CommRegex == "" && r.FilenameRegex == "" && len(r.Names) == 0 {
			return nil, fmt.Errorf("rule %s has no match criteria", r.ID)
		}
		if r.CommRegex != "" {
			re, err := regexp.Compile(r.CommRegex)
			if err != nil {
				return nil, fmt.Errorf("rule %s comm_regex: %w", r.ID, err)
			}
			cr.commRe = re
		}
		if r.FilenameRegex != "" {
			re, err := regexp.Compile(r.FilenameRegex)
			if err != nil {
				return nil, fmt.Errorf("rule %s filename_regex: %w", r.ID, err)
			}
			cr.filenameRe = re
		}
		for _, n := range r.Names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				return nil, fmt.Errorf("rule %s has an empty name", r.ID)
			}
			cr.names = append(cr.names, n)
		}
		compiled = append(compiled, cr)
	}
	return &Engine{rules: compiled}, nil
}

func (e *Engine) Evaluate(ev model.Event) []Alert {
	var alerts []Alert

	// Built-in heuristics
	alerts = append(alerts, builtinHeuristics(ev)...)

	// Configured rules
	for _, r := range e.rules {
		if r.commRe != nil && !r.commRe.MatchString(ev.Comm) {
			continue
		}
		if r.filenameRe != nil && !r.filenameRe.MatchString(ev.Filename) {
			continue
		}
		if len(r.names) > 0 && !matchesName(ev, r.names) {
			continue
		}

		alerts = append(alerts, Alert{
			Timestamp:   time.Now().UTC(),
			RuleID:      r.id,
			Description: r.description,
			Event:       ev,
		})
	}

	return alerts
}

func matchesName(ev model.Event, names []string) bool {
	comm := strings.ToLower(ev.Comm)
	file := strings.ToLower(ev.Filename)
	for _, n := range names {
		if strings.Contains(comm, n) || strings.Contains(file, n) {
			return true
		}
	}
	return false
}

func builtinHeuristics(ev model.Event) []Alert {
	var alerts []Alert

	// Fileless exec – exec from memfd, /dev/shm, /proc/self/fd
	lower := strings.ToLower(ev.Filename)
	if strings.HasPrefix(lower, "/dev/shm/") ||
		strings.HasPrefix(lower, "/tmp/.") ||
		strings.HasPrefix(lower, "/proc/self/fd/") ||
		strings.HasPrefix(lower, "memfd:") {
		alerts = append(alerts, Alert{
			Timestamp:   time.Now().UTC(),
			RuleID:      "builtin_fileless_exec",
			Description: "Fileless or memory-backed executable",
			Event:       ev,
		})
	}

	// Execs whose parent could not be resolved are worth a second look:
	// the kernel-side parent read came back empty.
	if ev.Ppid == 0 && ev.Pid > 1 {
		alerts = append(alerts, Alert{
			Timestamp:   time.Now().UTC(),
			RuleID:      "builtin_unknown_parent",
			Description: "Exec event with unresolved parent process",
			Event:       ev,
		})
	}

	// Known-ish miner names
	lowerComm := strings.ToLower(ev.Comm)
	if strings.Contains(lowerComm, "xmrig") || strings.Contains(lower, "xmrig") ||
		strings.Contains(lowerComm, "minerd") || strings.Contains(lower, "minerd") ||
		strings.Contains(lowerComm, "cpuminer") || strings.Contains(lower, "cpuminer") {
		alerts = append(alerts, Alert{
			Timestamp:   time.Now().UTC(),
			RuleID:      "builtin_crypto_exec",
			Description: "Executable name looks like a crypto miner",
			Event:       ev,
		})
	}

	return alerts
}
