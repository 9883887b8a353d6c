package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
		wantErr   bool
	}{
		{name: "development", opts: Options{Development: true}, wantDebug: true},
		{name: "production", opts: Options{}},
		{name: "production debug", opts: Options{Level: "debug"}, wantDebug: true},
		{name: "development warn", opts: Options{Development: true, Level: "warn"}},
		{name: "bad level", opts: Options{Level: "loud"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tc.opts)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer logger.Sync() //nolint:errcheck // best-effort flush
			assert.Equal(t, tc.wantDebug, logger.Core().Enabled(zap.DebugLevel))
		})
	}
}

func TestForRun(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForRun(zap.New(core), "run-1", "full").Info("task complete")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "full", fields["mode"])
}
