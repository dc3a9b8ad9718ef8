package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/daemon/internal/fabric"
	"github.com/hostwatch/daemon/internal/model"
	"github.com/hostwatch/daemon/internal/sse"
)

type fakePull struct {
	id fabric.SourceID
}

func (p fakePull) Source() fabric.SourceID { return p.id }
func (p fakePull) Poll() (model.Data, error) {
	return model.NewStateData(map[string]model.Status{p.id.ID: {State: model.StateActive}}), nil
}

func TestEventsStreamEmitsSnapshotFrame(t *testing.T) {
	f := fabric.New(5*time.Millisecond, 16, []fabric.PullSource{fakePull{id: fabric.SourceID{ID: "systemd.system", Type: "systemd"}}}, nil)
	defer f.Close()

	srv := sse.NewServer(f)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var dataLine string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}
	assert.Contains(t, dataLine, `"systemd.system"`)
	assert.Contains(t, dataLine, `"replace"`)
}

func TestHealthEndpoint(t *testing.T) {
	f := fabric.New(time.Hour, 4, nil, nil)
	defer f.Close()
	srv := sse.NewServer(f)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
