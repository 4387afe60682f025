package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestSetupForJobMissingConfig(t *testing.T) {
	chdir(t, t.TempDir())

	shutdown := SetupForJob(context.Background(), "telemetry-missing")
	require.NotNil(t, shutdown)
	shutdown()
}

func TestSetupForJobBadConfig(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "telemetry.json5"), []byte("{not json5"), 0o644)
	require.NoError(t, err)
	chdir(t, dir)

	// a broken config must never kill the run
	shutdown := SetupForJob(context.Background(), "telemetry-bad")
	require.NotNil(t, shutdown)
	shutdown()
}
