package config

import (
	"time"

	"github.com/hostwatch/daemon/internal/model"
)

// SourceKind names which module backs a configured source.
type SourceKind string

const (
	SourceSystemd SourceKind = "systemd"
	SourceJournal SourceKind = "journal"
)

// SystemdFilter is a systemd source's filter entry. The module itself adds
// no filter-specific fields beyond the common include/exclude matchers.
type SystemdFilter struct {
	Common FilterCommon
}

// SystemdConfig configures a pull/push systemd unit-status source.
type SystemdConfig struct {
	ID      string
	Filters []SystemdFilter
	User    bool // true: session bus / --user units, false: system bus
}

// JournalFilter is a journal source's filter entry, adding a minimum
// severity level and attributes to merge into every matching event.
type JournalFilter struct {
	Common     FilterCommon
	Level      *model.Severity
	AttrExtend map[string]any
}

// JournalConfig configures a journalctl-follower push source.
type JournalConfig struct {
	ID              string
	Filters         []JournalFilter
	Backlog         *int
	BackoffInterval time.Duration
}

const defaultJournalBackoff = 10 * time.Second

// SourceConfig is the parsed, tagged form of one entry under the config
// document's "sources" map.
type SourceConfig struct {
	Kind    SourceKind
	Systemd *SystemdConfig
	Journal *JournalConfig
}

// ID returns the configured source's identifier (its key in the "sources"
// map, or the inferred default id).
func (s SourceConfig) ID() string {
	switch s.Kind {
	case SourceSystemd:
		return s.Systemd.ID
	case SourceJournal:
		return s.Journal.ID
	default:
		return ""
	}
}

func parseSeverityName(s string) (model.Severity, error) {
	sev, err := model.SeverityFromName(s)
	if err != nil {
		return 0, newError("Unknown severity: %s", s)
	}
	return sev, nil
}

func parseSystemdConfig(id string, n *node) (*SystemdConfig, error) {
	if n == nil {
		return &SystemdConfig{ID: id}, nil
	}

	filters, err := parseSystemdFilters(n)
	if err != nil {
		return nil, err
	}

	user, err := descend(n, "user", asBoolOpt)
	if err != nil {
		return nil, err
	}

	if err := consumeResidual(n, nil); err != nil {
		return nil, err
	}

	return &SystemdConfig{
		ID:      id,
		Filters: filters,
		User:    user != nil && *user,
	}, nil
}

func parseSystemdFilters(n *node) ([]SystemdFilter, error) {
	raw, present := n.take("filters")
	if present {
		arr, err := asArray(raw)
		if err != nil {
			return nil, annotate(err, "filters")
		}
		out := make([]SystemdFilter, 0, len(arr))
		for i, entry := range arr {
			obj, err := asObject(entry)
			if err != nil {
				return nil, annotate(annotate(err, indexKey(i)), "filters")
			}
			child := newNode(obj)
			common, err := parseFilterCommon(child)
			if err != nil {
				return nil, annotate(annotate(err, indexKey(i)), "filters")
			}
			if err := consumeResidual(child, nil); err != nil {
				return nil, annotate(annotate(err, indexKey(i)), "filters")
			}
			out = append(out, SystemdFilter{Common: common})
		}
		return out, nil
	}

	// No "filters" key: parse a single filter directly from the
	// module-level attrs, leaving module-specific keys (e.g. "user") for
	// the caller to read afterward.
	common, err := parseFilterCommon(n)
	if err != nil {
		return nil, err
	}
	return []SystemdFilter{{Common: common}}, nil
}

func parseJournalConfig(id string, n *node) (*JournalConfig, error) {
	if n == nil {
		return &JournalConfig{ID: id, BackoffInterval: defaultJournalBackoff}, nil
	}

	filters, err := parseJournalFilters(n)
	if err != nil {
		return nil, err
	}

	backlog, err := descend(n, "backlog", asIntOpt)
	if err != nil {
		return nil, err
	}

	backoff, err := descend(n, "backoff", func(v any, present bool) (time.Duration, error) {
		if !present || v == nil {
			return defaultJournalBackoff, nil
		}
		s, err := asString(v)
		if err != nil {
			return 0, err
		}
		return parseDuration(s)
	})
	if err != nil {
		return nil, err
	}

	if err := consumeResidual(n, nil); err != nil {
		return nil, err
	}

	return &JournalConfig{
		ID:              id,
		Filters:         filters,
		Backlog:         backlog,
		BackoffInterval: backoff,
	}, nil
}

func parseJournalFilter(n *node) (JournalFilter, error) {
	common, err := parseFilterCommon(n)
	if err != nil {
		return JournalFilter{}, err
	}
	level, err := descend(n, "level", func(v any, present bool) (*model.Severity, error) {
		if !present || v == nil {
			return nil, nil
		}
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		sev, err := parseSeverityName(s)
		if err != nil {
			return nil, err
		}
		return &sev, nil
	})
	if err != nil {
		return JournalFilter{}, err
	}
	attrExtend, err := descend(n, "attr_extend", func(v any, present bool) (map[string]any, error) {
		if !present || v == nil {
			return nil, nil
		}
		return asObject(v)
	})
	if err != nil {
		return JournalFilter{}, err
	}
	return JournalFilter{Common: common, Level: level, AttrExtend: attrExtend}, nil
}

func parseJournalFilters(n *node) ([]JournalFilter, error) {
	raw, present := n.take("filters")
	if present {
		arr, err := asArray(raw)
		if err != nil {
			return nil, annotate(err, "filters")
		}
		out := make([]JournalFilter, 0, len(arr))
		for i, entry := range arr {
			obj, err := asObject(entry)
			if err != nil {
				return nil, annotate(annotate(err, indexKey(i)), "filters")
			}
			child := newNode(obj)
			filter, err := parseJournalFilter(child)
			if err != nil {
				return nil, annotate(annotate(err, indexKey(i)), "filters")
			}
			if err := consumeResidual(child, nil); err != nil {
				return nil, annotate(annotate(err, indexKey(i)), "filters")
			}
			out = append(out, filter)
		}
		return out, nil
	}

	filter, err := parseJournalFilter(n)
	if err != nil {
		return nil, err
	}
	return []JournalFilter{filter}, nil
}

func parseSourceConfig(id string, raw any) (SourceConfig, error) {
	var module string
	var n *node

	switch v := raw.(type) {
	case bool:
		if !v {
			return SourceConfig{}, newError("Expected Object or `true`, got Boolean")
		}
	case map[string]any:
		attrs := v
		if mv, ok := attrs["module"]; ok {
			delete(attrs, "module")
			m, err := asString(mv)
			if err != nil {
				return SourceConfig{}, annotate(err, "module")
			}
			module = m
		}
		n = newNode(attrs)
	default:
		return SourceConfig{}, typeMismatchError(raw, "Object or `true`")
	}

	if module == "" {
		module = id
	}

	switch module {
	case "systemd":
		cfg, err := parseSystemdConfig(id, n)
		if err != nil {
			return SourceConfig{}, err
		}
		return SourceConfig{Kind: SourceSystemd, Systemd: cfg}, nil
	case "journal":
		cfg, err := parseJournalConfig(id, n)
		if err != nil {
			return SourceConfig{}, err
		}
		return SourceConfig{Kind: SourceJournal, Journal: cfg}, nil
	default:
		return SourceConfig{}, newError("Unknown module: %s", module)
	}
}

// defaultSources is used when the document omits "sources" entirely: one
// systemd.system source (system bus) and one journal source with a single
// implicit Warning-level filter.
func defaultSources() []SourceConfig {
	warning := model.SeverityWarning
	return []SourceConfig{
		{
			Kind: SourceSystemd,
			Systemd: &SystemdConfig{
				ID:      "systemd.system",
				Filters: []SystemdFilter{{}},
				User:    false,
			},
		},
		{
			Kind: SourceJournal,
			Journal: &JournalConfig{
				ID:              "journal",
				Filters:         []JournalFilter{{Level: &warning}},
				BackoffInterval: defaultJournalBackoff,
			},
		},
	}
}
