package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/cmd/auditor/config"
)

func TestReadFlags(t *testing.T) {
	// flag definitions are shared package state, so these run sequentially
	cfg := config.Config{
		RPCURL:          "http://127.0.0.1:8545",
		ContractsFile:   "contracts/core.json",
		MaxBlockAge:     time.Hour,
		VoteConcurrency: 2,
	}

	t.Run("it falls back to the environment defaults", func(t *testing.T) {
		// Act
		f := parseArgs(t, cfg, "ballotaudit")

		// Assert
		assert.Equal(t, cfg.RPCURL, f.URL)
		assert.Equal(t, cfg.ContractsFile, f.Contracts)
		assert.Zero(t, f.Period)
		assert.Nil(t, f.ToBlock)
		assert.False(t, f.Verbose)
	})

	t.Run("it reads every flag", func(t *testing.T) {
		// Act
		f := parseArgs(t, cfg, "ballotaudit",
			"-v", "-c", "poa.json", "-p", "2 weeks", "-b", "100", "--to-block", "900", "--no-color", "--all",
			"http://node:8545",
		)

		// Assert
		assert.Equal(t, "http://node:8545", f.URL)
		assert.Equal(t, "poa.json", f.Contracts)
		assert.True(t, f.Verbose)
		assert.Equal(t, 14*24*time.Hour, f.Period)
		assert.Equal(t, uint64(100), f.MinBlock)
		require.NotNil(t, f.ToBlock)
		assert.Equal(t, uint64(900), *f.ToBlock)
		assert.True(t, f.NoColor)
		assert.True(t, f.All)
	})

	t.Run("it honours an explicit zero to-block", func(t *testing.T) {
		f := parseArgs(t, cfg, "ballotaudit", "--to-block", "0")

		require.NotNil(t, f.ToBlock)
		assert.Zero(t, *f.ToBlock)
	})
}

func TestServiceOptions(t *testing.T) {
	t.Parallel()

	// Arrange
	f := runFlags{Period: 48 * time.Hour, MinBlock: 7}
	now := time.Date(2020, 3, 10, 0, 0, 0, 0, time.UTC)

	// Act
	opts := f.serviceOptions(config.Config{MaxBlockAge: time.Hour, VoteConcurrency: 1}, now)

	// Assert
	assert.Len(t, opts, 3)
	f.ToBlock = new(uint64)
	assert.Len(t, f.serviceOptions(config.Config{}, now), 4)
}

func TestSetupEventLogging(t *testing.T) {
	t.Parallel()

	t.Run("it records the report and logs completion", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		events := make(chan auditor.Event, 2)
		report := auditor.NewReport(auditor.NewStats(), 0, 10)
		var out outcome

		// Act
		closer := setupEventLogging(context.Background(), events, log, &out)
		events <- auditor.EventsFetched{Count: 3}
		events <- auditor.AuditCompleted{Report: report, Duration: time.Second}
		close(events)
		closer()

		// Assert
		assert.Same(t, report, out.report)
		assert.NoError(t, out.err)
		assert.Contains(t, buf.String(), `"msg":"Governance events fetched","count":3`)
		assert.Contains(t, buf.String(), `"msg":"Audit completed"`)
	})

	t.Run("it records the failure", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))
		events := make(chan auditor.Event, 1)
		var out outcome

		// Act
		closer := setupEventLogging(context.Background(), events, log, &out)
		events <- auditor.AuditFailed{Err: auditor.ErrNoEventsFound}
		close(events)
		closer()

		// Assert
		assert.ErrorIs(t, out.err, auditor.ErrNoEventsFound)
		assert.Nil(t, out.report)
		assert.Contains(t, buf.String(), "Audit failed")
	})

	t.Run("it warns about key changes with an unknown action", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		events := make(chan auditor.Event, 1)
		key := common.HexToAddress("0x00000000000000000000000000000000000000a1")
		var out outcome

		// Act
		closer := setupEventLogging(context.Background(), events, log, &out)
		events <- auditor.KeyChangeIgnored{Block: 7, Action: "rotated", Key: key}
		close(events)
		closer()

		// Assert
		assert.Contains(t, buf.String(), `"level":"WARN","msg":"Key change ignored","block":7,"action":"rotated"`)
		assert.Contains(t, buf.String(), key.Hex())
	})
}

// Test helpers

func parseArgs(t *testing.T, cfg config.Config, args ...string) runFlags {
	t.Helper()

	var got runFlags
	app := newApp(cfg, func(_ *cli.Context, f runFlags) error {
		got = f
		return nil
	})
	require.NoError(t, app.Run(args))
	return got
}
