// Package filter implements the pre_mutate/matches/mutate/post_mutate
// pipeline every record from a data source (systemd unit statuses, polled
// or pushed, and journal lines) runs through before being emitted,
// grounded on original_source/src/filter.rs (the
// matcher/include/exclude core) and the inline PRIORITY/SEVERITY handling
// in original_source/src/journal.rs (generalized here into the pipeline's
// global pre_mutate/post_mutate hooks).
package filter

import (
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hostwatch/daemon/internal/config"
	"github.com/hostwatch/daemon/internal/model"
)

// Record is the mutable attribute bag a filter pipeline runs against. ID is
// the record's identity (used as the match target when a matcher has no
// explicit attr); Attrs is mutated in place by pre_mutate/mutate/post_mutate.
type Record struct {
	ID    string
	Attrs model.Attributes
}

// Filter is one compiled filter entry: the shared include/exclude matcher
// set, an optional minimum severity, and attributes to merge in on match.
type Filter struct {
	Common     config.FilterCommon
	Level      *model.Severity
	AttrExtend map[string]any
}

// FromSystemd compiles a config.SystemdFilter into a pipeline Filter. The
// systemd module never sets attr_extend or a severity threshold.
func FromSystemd(f config.SystemdFilter) Filter {
	return Filter{Common: f.Common}
}

// FromJournal compiles a config.JournalFilter into a pipeline Filter.
func FromJournal(f config.JournalFilter) Filter {
	return Filter{Common: f.Common, Level: f.Level, AttrExtend: f.AttrExtend}
}

// Engine runs a record through a module's ordered filter list.
type Engine struct {
	filters []Filter
	kind    config.SourceKind
}

// NewSystemd builds an Engine for a systemd source's filters.
func NewSystemd(filters []config.SystemdFilter) *Engine {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = FromSystemd(f)
	}
	return &Engine{filters: out, kind: config.SourceSystemd}
}

// NewJournal builds an Engine for a journal source's filters.
func NewJournal(filters []config.JournalFilter) *Engine {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = FromJournal(f)
	}
	return &Engine{filters: out, kind: config.SourceJournal}
}

// Run executes the full pipeline: pre_mutate, matcher scan (first match
// wins), mutate, post_mutate. It reports false if the record was dropped
// (no filter matched a non-empty filter list).
func (e *Engine) Run(r Record) (Record, bool) {
	if e.kind == config.SourceJournal {
		preMutateJournal(r.Attrs)
	}

	if len(e.filters) == 0 {
		if e.kind == config.SourceJournal {
			postMutateJournal(r.Attrs)
		}
		return r, true
	}

	for _, f := range e.filters {
		if !matches(f, r) {
			continue
		}
		r.Attrs = mutate(f, r.Attrs)
		if e.kind == config.SourceJournal {
			postMutateJournal(r.Attrs)
		}
		return r, true
	}
	return Record{}, false
}

// matches reports whether record r passes filter f's include/exclude rules
// and its severity threshold, if any.
func matches(f Filter, r Record) bool {
	if f.Level != nil {
		sev, ok := severityOf(r.Attrs)
		if !ok || !sev.AtLeastAsSevere(*f.Level) {
			return false
		}
	}
	return matchesCommon(f.Common, r)
}

func matchesCommon(common config.FilterCommon, r Record) bool {
	if len(common.Include) > 0 {
		matched := false
		for _, m := range common.Include {
			if testMatch(m, r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, m := range common.Exclude {
		if testMatch(m, r) {
			return false
		}
	}
	return true
}

func testMatch(m config.Matcher, r Record) bool {
	subject, ok := target(m, r)
	if !ok {
		return false
	}
	return testPattern(subject, m)
}

// target resolves the string a matcher tests against: the named attribute
// if Attr is set (non-string values never match), otherwise the record's
// identity.
func target(m config.Matcher, r Record) (string, bool) {
	if m.Attr == "" {
		return r.ID, true
	}
	v, ok := r.Attrs[m.Attr]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func testPattern(s string, m config.Matcher) bool {
	switch m.Kind {
	case config.PatternLiteral:
		return s == m.Pattern
	case config.PatternGlob:
		ok, err := doublestar.Match(m.Pattern, s)
		return err == nil && ok
	case config.PatternRegex:
		re, err := regexp.Compile(m.Pattern)
		return err == nil && re.MatchString(s)
	default:
		return false
	}
}

func mutate(f Filter, attrs model.Attributes) model.Attributes {
	if len(f.AttrExtend) == 0 {
		return attrs
	}
	if attrs == nil {
		attrs = model.Attributes{}
	}
	for k, v := range f.AttrExtend {
		attrs[k] = v
	}
	return attrs
}

// sourceIdentityKeys are tried in order to derive a journal record's
// identity, matching original_source/src/journal.rs's source_keys.
var sourceIdentityKeys = []string{"_SYSTEMD_UNIT", "SYSLOG_IDENTIFIER"}

// Identity picks a journal record's identity per spec section 4.3's
// tie-break: _SYSTEMD_UNIT, then SYSLOG_IDENTIFIER, falling back to
// "UNKNOWN".
func Identity(attrs model.Attributes) string {
	for _, key := range sourceIdentityKeys {
		if v, ok := attrs[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return "UNKNOWN"
}

func severityOf(attrs model.Attributes) (model.Severity, bool) {
	v, ok := attrs["SEVERITY"]
	if !ok {
		return 0, false
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	sev, err := model.SeverityFromName(s)
	if err != nil {
		return 0, false
	}
	return sev, true
}
