package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/sentinel-go/internal/logging"
)

func TestWatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	roster := filepath.Join(dir, "suppliers.csv")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(roster, []byte(rosterHeader), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{roster}, 50*time.Millisecond, func(_ context.Context, changed []string) {
			batches <- changed
		}, logging.Discard())
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(roster, []byte(rosterHeader+"S1,A,B,C,1,0.1\n"), 0o644))
	}

	select {
	case changed := <-batches:
		want, _ := filepath.Abs(roster)
		assert.Equal(t, []string{want}, changed)
	case <-ctx.Done():
		t.Fatal("no change batch delivered")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_NoFiles(t *testing.T) {
	t.Parallel()
	err := Watch(context.Background(), nil, 0, func(context.Context, []string) {}, logging.Discard())
	assert.Error(t, err)
}
