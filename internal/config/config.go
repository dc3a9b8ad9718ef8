package config

import (
	"sort"
	"time"
)

const defaultPollInterval = 15 * time.Second

// PollConfig controls how often pull sources are re-scanned.
type PollConfig struct {
	Interval time.Duration
}

func parsePollConfig(v any, present bool) (PollConfig, error) {
	if !present || v == nil {
		return PollConfig{Interval: defaultPollInterval}, nil
	}
	obj, err := asObject(v)
	if err != nil {
		return PollConfig{}, err
	}
	n := newNode(obj)
	interval, err := descend(n, "interval", func(v any, present bool) (time.Duration, error) {
		if !present || v == nil {
			return defaultPollInterval, nil
		}
		s, err := asString(v)
		if err != nil {
			return 0, err
		}
		return parseDuration(s)
	})
	if err != nil {
		return PollConfig{}, err
	}
	if err := consumeResidual(n, nil); err != nil {
		return PollConfig{}, err
	}
	return PollConfig{Interval: interval}, nil
}

// Config is the fully validated daemon configuration.
type Config struct {
	Poll    PollConfig
	Sources []SourceConfig
}

// Parse validates a raw decoded document (as produced by a JSON or YAML
// parser: map[string]any, []any, string, bool, float64/int, nil) into a
// Config, rejecting any key it does not recognize.
func Parse(doc any) (Config, error) {
	top, err := asObject(doc)
	if err != nil {
		return Config{}, err
	}
	n := newNode(top)

	poll, err := descend(n, "poll", parsePollConfig)
	if err != nil {
		return Config{}, err
	}

	sources, err := descend(n, "sources", parseSourcesField)
	if err != nil {
		return Config{}, err
	}

	if err := consumeResidual(n, nil); err != nil {
		return Config{}, err
	}

	return Config{Poll: poll, Sources: sources}, nil
}

func parseSourcesField(v any, present bool) ([]SourceConfig, error) {
	if !present || v == nil {
		return defaultSources(), nil
	}
	obj, err := asObject(v)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(obj))
	for id := range obj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]SourceConfig, 0, len(obj))
	for _, id := range ids {
		sc, err := parseSourceConfig(id, obj[id])
		if err != nil {
			return nil, annotate(err, id)
		}
		out = append(out, sc)
	}
	return out, nil
}
