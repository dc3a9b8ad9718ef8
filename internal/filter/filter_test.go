package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/daemon/internal/config"
	"github.com/hostwatch/daemon/internal/filter"
	"github.com/hostwatch/daemon/internal/model"
)

func TestEmptyFilterListPassesThrough(t *testing.T) {
	e := filter.NewJournal(nil)
	rec := filter.Record{ID: "sshd", Attrs: model.Attributes{"PRIORITY": "3", "_PID": "1"}}
	out, ok := e.Run(rec)
	require.True(t, ok)
	assert.Equal(t, "Error", out.Attrs["SEVERITY"])
	_, hasUnderscoreKey := out.Attrs["_PID"]
	assert.False(t, hasUnderscoreKey)
}

func TestScenarioS3(t *testing.T) {
	level := model.SeverityError
	filters := []config.JournalFilter{
		{
			Common: config.FilterCommon{
				Include: []config.Matcher{{Kind: config.PatternRegex, Pattern: "^ssh"}},
			},
			Level: &level,
		},
	}
	e := filter.NewJournal(filters)

	emitted, ok := e.Run(filter.Record{
		ID: "sshd",
		Attrs: model.Attributes{
			"PRIORITY":         "3",
			"_SYSTEMD_UNIT":    "sshd.service",
			"SYSLOG_IDENTIFIER": "sshd",
		},
	})
	require.True(t, ok)
	assert.Equal(t, "Error", emitted.Attrs["SEVERITY"])
	for k := range emitted.Attrs {
		assert.NotEqual(t, byte('_'), k[0])
	}

	_, ok = e.Run(filter.Record{
		ID:    "cron",
		Attrs: model.Attributes{"PRIORITY": "3"},
	})
	assert.False(t, ok)
}

func TestIncludeExcludeSemantics(t *testing.T) {
	filters := []config.SystemdFilter{
		{
			Common: config.FilterCommon{
				Include: []config.Matcher{{Kind: config.PatternGlob, Pattern: "ssh*"}},
				Exclude: []config.Matcher{{Kind: config.PatternLiteral, Pattern: "sshd-keygen"}},
			},
		},
	}
	e := filter.NewSystemd(filters)

	_, ok := e.Run(filter.Record{ID: "sshd", Attrs: model.Attributes{}})
	assert.True(t, ok)

	_, ok = e.Run(filter.Record{ID: "sshd-keygen", Attrs: model.Attributes{}})
	assert.False(t, ok)

	_, ok = e.Run(filter.Record{ID: "cron", Attrs: model.Attributes{}})
	assert.False(t, ok)
}

func TestAttrExtendMergedOnMatch(t *testing.T) {
	filters := []config.JournalFilter{
		{AttrExtend: map[string]any{"ENV": "prod"}},
	}
	e := filter.NewJournal(filters)
	out, ok := e.Run(filter.Record{ID: "x", Attrs: model.Attributes{}})
	require.True(t, ok)
	assert.Equal(t, "prod", out.Attrs["ENV"])
}

func TestIdentityTieBreak(t *testing.T) {
	assert.Equal(t, "unit.service", filter.Identity(model.Attributes{
		"_SYSTEMD_UNIT":     "unit.service",
		"SYSLOG_IDENTIFIER": "other",
	}))
	assert.Equal(t, "other", filter.Identity(model.Attributes{"SYSLOG_IDENTIFIER": "other"}))
	assert.Equal(t, "UNKNOWN", filter.Identity(model.Attributes{}))
}
