package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(slots int) Config {
	cfg := DefaultConfig()
	cfg.Slots = slots
	cfg.Frames = 2000
	cfg.Payload = 64
	cfg.ProduceInterval = 0
	cfg.ConsumeInterval = 0
	cfg.Jitter = Duration(20 * time.Microsecond)
	cfg.ReadTimeout = Duration(5 * time.Millisecond)
	return cfg
}

func TestSnapshotIntegrity(t *testing.T) {
	var s snapshot
	fill(&s, 7, make([]uint64, 16))
	assert.True(t, intact(&s))

	s.Payload[3]++
	assert.False(t, intact(&s))

	fill(&s, 8, s.Payload)
	s.Seq = 7
	assert.False(t, intact(&s), "payload of frame 8 under seq 7 is torn")
}

func TestRun(t *testing.T) {
	for _, slots := range []int{2, 3} {
		cfg := fastConfig(slots)
		res := Run(context.Background(), cfg, quietLogger())

		assert.Equal(t, uint64(cfg.Frames), res.Written, "slots=%d", slots)
		assert.Equal(t, uint64(cfg.Frames), res.LastSeq, "slots=%d last frame must be observed", slots)
		assert.Zero(t, res.Torn, "slots=%d", slots)
		assert.Zero(t, res.Backwards, "slots=%d", slots)
		assert.Equal(t, res.Observed, res.Stats.Reads)
		assert.Equal(t, res.Written, res.Stats.Reads+res.Stats.Superseded)
		// every slot plus the one being filled
		assert.LessOrEqual(t, res.Allocated, slots+1)
		assert.GreaterOrEqual(t, res.Live, 2)
		assert.LessOrEqual(t, res.Live, slots)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := fastConfig(3)
	cfg.Frames = 1_000_000
	cfg.ProduceInterval = Duration(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := Run(ctx, cfg, quietLogger())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Less(t, res.Written, uint64(cfg.Frames))
	assert.Zero(t, res.Torn)
}

func TestRunCommand(t *testing.T) {
	report := filepath.Join(t.TempDir(), "report.json")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"--slots", "2",
		"-f", "300",
		"--payload", "32",
		"--produce-interval", "0s",
		"--consume-interval", "0s",
		"--read-timeout", "5ms",
		"--report", report,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "torn:        0")

	data, err := os.ReadFile(report)
	require.NoError(t, err)

	var res Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, 2, res.Slots)
	assert.Equal(t, uint64(300), res.Written)
	assert.Equal(t, uint64(300), res.LastSeq)
}

func TestRunCommandBadArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"--slots", "5"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "slots must be 2 or 3")

	stderr.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"--no-such-flag"}, &stdout, &stderr))

	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, &stdout, &stderr))
}
