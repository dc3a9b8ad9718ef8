package systemd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnoreUnit(t *testing.T) {
	assert.True(t, shouldIgnoreUnit("tmp.mount"))
	assert.True(t, shouldIgnoreUnit("system.slice"))
	assert.False(t, shouldIgnoreUnit("sshd.service"))
}

func TestStateOfActiveState(t *testing.T) {
	cases := map[string]string{
		"active":       "Active",
		"activating":   "Active",
		"inactive":     "Inactive",
		"deactivating": "Inactive",
		"failed":       "Error",
		"unknown-ish":  "Unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, stateOfActiveState(in).String())
	}
}

func TestBatchUnitsRespectsBudget(t *testing.T) {
	units := []string{"a.service", "b.service", "c.service", "d.service"}
	batches := batchUnits(units, 20)
	for _, b := range batches {
		total := 0
		for _, u := range b {
			total += len(u) + 1
		}
		assert.LessOrEqual(t, total, 20+len("d.service")+1) // last item may tip one batch over alone
	}
	var flat []string
	for _, b := range batches {
		flat = append(flat, b...)
	}
	assert.Equal(t, units, flat)
}

func TestParsePropertyBlocksSingleUnit(t *testing.T) {
	out := "ActiveState=active\nSubState=running\nResult=success\n"
	statuses, err := parsePropertyBlocks(out, []string{"sshd.service"})
	require.NoError(t, err)
	require.Contains(t, statuses, "sshd.service")
	assert.Equal(t, "Active", statuses["sshd.service"].State.String())
	assert.Equal(t, "running", statuses["sshd.service"].Attrs["SubState"])
}

func TestParsePropertyBlocksMultipleUnits(t *testing.T) {
	out := "ActiveState=active\nSubState=running\n\nActiveState=failed\nSubState=dead\n"
	statuses, err := parsePropertyBlocks(out, []string{"a.service", "b.service"})
	require.NoError(t, err)
	assert.Equal(t, "Active", statuses["a.service"].State.String())
	assert.Equal(t, "Error", statuses["b.service"].State.String())
}

func TestDBusUnescape(t *testing.T) {
	assert.Equal(t, "sshd.service", dbusUnescape("sshd_2eservice"))
	assert.Equal(t, "sshd.service", unitNameFromPath("/org/freedesktop/systemd1/unit/sshd_2eservice"))
}
