package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hostwatch/daemon/internal/config"
	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/filter"
	"github.com/hostwatch/daemon/internal/model"
)

// maxExecArgLen bounds how many unit names are batched into one
// `systemctl show` invocation, matching systemd_subprocess.rs's
// MAX_EXECV_ARGLEN so a host with thousands of units never exceeds the
// kernel's argv size limit.
const maxExecArgLen = 4096

// pollTimeout bounds a single poll cycle's subprocess calls so a wedged
// systemctl can't stall the fabric's poll worker indefinitely.
const pollTimeout = 30 * time.Second

// Poller is the pull-mode systemd data source: spawn systemctl list-units,
// batch the results into systemctl show calls, and run each unit's status
// through the configured filter engine.
//
// Grounded on original_source/src/systemd_subprocess.rs's SystemdPoller.
type Poller struct {
	id     fabric.SourceID
	user   bool
	engine *filter.Engine
}

// NewPoller builds a Poller from a parsed systemd source config.
func NewPoller(cfg *config.SystemdConfig) *Poller {
	return &Poller{
		id:     fabric.SourceID{ID: cfg.ID, Type: string(config.SourceSystemd)},
		user:   cfg.User,
		engine: filter.NewSystemd(cfg.Filters),
	}
}

func (p *Poller) Source() fabric.SourceID { return p.id }

func (p *Poller) commonArgs(args ...string) []string {
	if p.user {
		return append([]string{"--user"}, args...)
	}
	return args
}

// Poll implements fabric.PullSource: one systemctl list-units call plus as
// many batched systemctl show calls as needed, filtered and returned as a
// single State data value keyed by unit name.
func (p *Poller) Poll() (model.Data, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	units, err := p.listUnits(ctx)
	if err != nil {
		return model.Data{}, err
	}

	statuses := make(map[string]model.Status, len(units))
	for _, batch := range batchUnits(units, maxExecArgLen-200) {
		got, err := p.showBatch(ctx, batch)
		if err != nil {
			return model.Data{}, err
		}
		for name, status := range got {
			statuses[name] = status
		}
	}

	out := make(map[string]model.Status, len(statuses))
	for name, status := range statuses {
		rec, ok := p.engine.Run(filter.Record{ID: name, Attrs: status.Attrs})
		if !ok {
			continue
		}
		status.Attrs = rec.Attrs
		out[name] = status
	}
	return model.NewStateData(out), nil
}

func (p *Poller) listUnits(ctx context.Context) ([]string, error) {
	args := p.commonArgs("list-units", "--no-pager", "--no-legend", "--full")
	out, err := exec.CommandContext(ctx, "systemctl", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("systemctl list-units: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		if shouldIgnoreUnit(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

var showProperties = "ActiveState,SubState,Result,ExecMainExitTimestamp,ExecMainStartTimestamp,StatusText"

func (p *Poller) showBatch(ctx context.Context, units []string) (map[string]model.Status, error) {
	args := p.commonArgs("show", "--property="+showProperties, "--")
	args = append(args, units...)
	out, err := exec.CommandContext(ctx, "systemctl", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("systemctl show: %w", err)
	}
	return parsePropertyBlocks(string(out), units)
}

// parsePropertyBlocks splits systemctl show's blank-line-delimited
// per-unit key=value blocks, parsing Timestamp-suffixed fields as times
// (falling back to the raw string when the local-time format doesn't
// match) and everything else as a plain string attribute.
func parsePropertyBlocks(out string, units []string) (map[string]model.Status, error) {
	trimmed := strings.TrimRight(out, "\n")
	var blocks []string
	if len(units) > 1 {
		blocks = strings.Split(trimmed, "\n\n")
	} else {
		blocks = []string{trimmed}
	}

	result := make(map[string]model.Status, len(units))
	for i := 0; i < len(units) && i < len(blocks); i++ {
		attrs := model.Attributes{}
		for _, line := range strings.Split(strings.TrimSpace(blocks[i]), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			key, val, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			if strings.HasSuffix(key, "Timestamp") && val != "" {
				if t, err := time.ParseInLocation("Mon 2006-01-02 15:04:05 MST", val, time.Local); err == nil {
					attrs[key] = model.FromGoTime(t)
					continue
				}
			}
			attrs[key] = val
		}
		active, _ := attrs["ActiveState"].(string)
		result[units[i]] = model.Status{State: stateOfActiveState(active), Attrs: attrs}
	}
	return result, nil
}

// batchUnits groups unit names so no single systemctl invocation's argv
// exceeds budget bytes, matching systemd_subprocess.rs's
// MAX_EXECV_ARGLEN batching via its channel-based collector.
func batchUnits(units []string, budget int) [][]string {
	var batches [][]string
	var cur []string
	n := 0
	for _, u := range units {
		if n+len(u)+1 > budget && len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			n = 0
		}
		cur = append(cur, u)
		n += len(u) + 1
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
