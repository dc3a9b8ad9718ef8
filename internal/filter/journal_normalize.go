package filter

import (
	"strconv"

	"github.com/hostwatch/daemon/internal/model"
)

// preMutateJournal normalizes the raw PRIORITY field journalctl emits
// (either a JSON number or a numeric string) into an integer 0..7 and, if
// in range, adds the textual SEVERITY attribute the rest of the pipeline
// (and severity-threshold filters) key off of. Out-of-range or unparsable
// values remove PRIORITY entirely rather than propagate a bogus severity.
func preMutateJournal(attrs model.Attributes) {
	raw, ok := attrs["PRIORITY"]
	if !ok {
		return
	}
	n, ok := toInt(raw)
	if !ok || n < 0 || n > 7 {
		delete(attrs, "PRIORITY")
		return
	}
	attrs["PRIORITY"] = n
	sev, err := model.SeverityFromSyslog(int64(n))
	if err == nil {
		attrs["SEVERITY"] = sev.String()
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// postMutateJournal drops every journald-internal attribute (conventionally
// prefixed with "_", e.g. _SYSTEMD_UNIT, _PID) once a record has passed its
// filter and is about to be emitted.
func postMutateJournal(attrs model.Attributes) {
	for k := range attrs {
		if len(k) > 0 && k[0] == '_' {
			delete(attrs, k)
		}
	}
}
