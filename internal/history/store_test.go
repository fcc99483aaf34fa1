package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/thingamajig/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(id, name string, startedAt time.Time) *models.RunResult {
	return &models.RunResult{
		ID: id,
		Program: &models.Program{
			Name:     name,
			Path:     "/tmp/" + name + ".asm",
			Format:   models.FormatAssembly,
			Image:    []byte{0x40, 0x00},
			MaxSteps: 1000,
		},
		ImageHash:  "deadbeef",
		Steps:      2,
		Halted:     true,
		StopReason: models.StopHalted,
		Registers:  models.RegisterSnapshot{IP: 2, RP: 0, R: [4]uint8{0xff, 0, 0, 0}},
		StartedAt:  startedAt,
		Duration:   1500 * time.Millisecond,
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
	}{
		{
			name:   "creates database successfully",
			dbPath: filepath.Join(t.TempDir(), "runs.db"),
		},
		{
			name:   "handles in-memory database",
			dbPath: ":memory:",
		},
		{
			name:   "creates parent directories if needed",
			dbPath: filepath.Join(t.TempDir(), "nested", "dir", "runs.db"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			require.NoError(t, err)
			require.NotNil(t, store)
			defer store.Close()

			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	versions, err := store.GetAppliedVersions()
	require.NoError(t, err)
	assert.Len(t, versions, len(migrations))
}

func TestRecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	result := sampleResult("", "countdown", started)
	result.Error = fmt.Errorf("boom")
	require.NoError(t, store.RecordRun(ctx, result))
	require.NotEmpty(t, result.ID, "ID is generated when empty")

	got, err := store.GetRun(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)
	assert.Equal(t, "countdown", got.ProgramName)
	assert.Equal(t, "/tmp/countdown.asm", got.ProgramPath)
	assert.Equal(t, models.FormatAssembly, got.Format)
	assert.Equal(t, 2, got.ImageSize)
	assert.Equal(t, uint64(2), got.Steps)
	assert.Equal(t, uint64(1000), got.MaxSteps)
	assert.True(t, got.Halted)
	assert.Equal(t, models.StopHalted, got.StopReason)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.Equal(t, result.Registers, got.Registers)
	assert.True(t, started.Equal(got.StartedAt))
}

func TestRecordRunRequiresProgram(t *testing.T) {
	store := newTestStore(t)
	err := store.RecordRun(context.Background(), &models.RunResult{})
	assert.Error(t, err)
}

func TestGetRunByPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordRun(ctx, sampleResult("abc111", "one", now)))
	require.NoError(t, store.RecordRun(ctx, sampleResult("abc222", "two", now.Add(time.Second))))

	tests := []struct {
		name    string
		query   string
		wantID  string
		wantErr error
	}{
		{name: "unique prefix", query: "abc1", wantID: "abc111"},
		{name: "full id", query: "abc222", wantID: "abc222"},
		{name: "ambiguous prefix", query: "abc", wantErr: ErrAmbiguous},
		{name: "no match", query: "zzz", wantErr: ErrNotFound},
		{name: "empty", query: "  ", wantErr: ErrNotFound},
		{name: "like wildcard is literal", query: "%", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetRun(ctx, tt.query)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("run-%d", i)
		require.NoError(t, store.RecordRun(ctx, sampleResult(id, "prog", base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := store.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, "run-2", runs[2].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.True(t, stats.LastRunAt.IsZero())

	require.NoError(t, store.RecordRun(ctx, sampleResult("a", "alpha", base)))

	limited := sampleResult("b", "alpha", base.Add(time.Hour))
	limited.Halted = false
	limited.StopReason = models.StopStepLimit
	limited.Steps = 10
	limited.Duration = 500 * time.Millisecond
	require.NoError(t, store.RecordRun(ctx, limited))

	failed := sampleResult("c", "beta", base.Add(2*time.Hour))
	failed.Halted = false
	failed.StopReason = models.StopFault
	failed.Error = fmt.Errorf("no such register")
	failed.Duration = 1 * time.Second
	require.NoError(t, store.RecordRun(ctx, failed))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 1, stats.HaltedRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, uint64(14), stats.TotalSteps)
	assert.Equal(t, time.Second, stats.AvgDuration)
	assert.Equal(t, map[string]int{"alpha": 2, "beta": 1}, stats.ByProgram)
	assert.True(t, base.Add(2*time.Hour).Equal(stats.LastRunAt))
}

func TestPruneAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.RecordRun(ctx, sampleResult(fmt.Sprintf("r%d", i), "p", base.Add(time.Duration(i)*time.Second))))
	}

	removed, err := store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	removed, err = store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)

	removed, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err = store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
