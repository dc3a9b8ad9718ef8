package config

import "strconv"

// PatternKind selects how Matcher.Pattern is interpreted by the filter
// engine: Literal equality, Glob (doublestar), or Regexp.
type PatternKind string

const (
	PatternLiteral PatternKind = "literal"
	PatternGlob    PatternKind = "glob"
	PatternRegex   PatternKind = "regex"
)

// Matcher is one include/exclude rule: Attr names which attribute to test
// (empty means the record's identity, e.g. a unit name or a journal
// record's _SYSTEMD_UNIT/SYSLOG_IDENTIFIER), matched against Pattern.
type Matcher struct {
	Attr    string
	Kind    PatternKind
	Pattern string
}

// FilterCommon is the include/exclude matcher pair every filter entry
// carries, independent of which module it belongs to.
type FilterCommon struct {
	Include []Matcher
	Exclude []Matcher
}

func parseMatcher(v any) (Matcher, error) {
	switch val := v.(type) {
	case string:
		return Matcher{Kind: PatternLiteral, Pattern: val}, nil
	case map[string]any:
		n := newNode(val)
		attr, err := descend(n, "attr", asStringOpt)
		if err != nil {
			return Matcher{}, err
		}
		typ, err := descend(n, "type", func(v any, present bool) (string, error) {
			raw, err := mandatory(v, present)
			if err != nil {
				return "", err
			}
			return asString(raw)
		})
		if err != nil {
			return Matcher{}, err
		}
		pattern, err := descend(n, "pattern", func(v any, present bool) (string, error) {
			raw, err := mandatory(v, present)
			if err != nil {
				return "", err
			}
			return asString(raw)
		})
		if err != nil {
			return Matcher{}, err
		}
		var kind PatternKind
		switch typ {
		case "glob":
			kind = PatternGlob
		case "regex":
			kind = PatternRegex
		case "literal":
			kind = PatternLiteral
		default:
			return Matcher{}, newError("Unsupported pattern type: %s", typ)
		}
		if err := consumeResidual(n, nil); err != nil {
			return Matcher{}, err
		}
		return Matcher{Attr: attr, Kind: kind, Pattern: pattern}, nil
	default:
		return Matcher{}, typeMismatchError(v, "String or Object")
	}
}

func parseMatchers(v any, present bool) ([]Matcher, error) {
	if !present || v == nil {
		return nil, nil
	}
	arr, err := asArray(v)
	if err != nil {
		return nil, err
	}
	out := make([]Matcher, 0, len(arr))
	for i, entry := range arr {
		m, err := parseMatcher(entry)
		if err != nil {
			return nil, annotate(err, indexKey(i))
		}
		out = append(out, m)
	}
	return out, nil
}

func indexKey(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func parseFilterCommon(n *node) (FilterCommon, error) {
	include, err := descend(n, "include", parseMatchers)
	if err != nil {
		return FilterCommon{}, err
	}
	exclude, err := descend(n, "exclude", parseMatchers)
	if err != nil {
		return FilterCommon{}, err
	}
	return FilterCommon{Include: include, Exclude: exclude}, nil
}
