package speculative

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_CommitSuccess_KeepsChangeAndSettles(t *testing.T) {
	c := NewCollection([]string{"a"})

	var seenDuringCommit []string
	res, err := Run(context.Background(), c, Change[string, string]{
		Apply: func(items []string) []string { return append(items, "tmp") },
		Commit: func(ctx context.Context) (string, error) {
			seenDuringCommit = c.Snapshot()
			return "b", nil
		},
		Settle: func(items []string, res string) []string {
			items[len(items)-1] = res
			return items
		},
	})

	require.NoError(t, err)
	require.Equal(t, "b", res)
	require.Equal(t, []string{"a", "tmp"}, seenDuringCommit)
	require.Equal(t, []string{"a", "b"}, c.Snapshot())
}

func TestRun_CommitFailure_RestoresSnapshot(t *testing.T) {
	c := NewCollection([]int{1, 2, 3})
	boom := errors.New("boom")

	var rolledBack error
	_, err := Run(context.Background(), c, Change[int, struct{}]{
		Apply: func(items []int) []int { return items[:1] },
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, boom
		},
		OnRollback: func(err error) { rolledBack = err },
	})

	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, rolledBack, boom)
	require.Equal(t, []int{1, 2, 3}, c.Snapshot())
}

func TestCollection_SnapshotIsACopy(t *testing.T) {
	c := NewCollection([]int{1})
	s := c.Snapshot()
	s[0] = 99
	require.Equal(t, []int{1}, c.Snapshot())

	v, ok := c.Find(func(i int) bool { return i == 1 })
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 1, c.Len())
}

func TestRun_FailedCommitKeepsConcurrentCommittedChange(t *testing.T) {
	c := NewCollection[string](nil)
	boom := errors.New("boom")

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	slowDone := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), c, Change[string, struct{}]{
			Apply: func(items []string) []string { return append(items, "slow") },
			Commit: func(ctx context.Context) (struct{}, error) {
				close(slowStarted)
				<-releaseSlow
				return struct{}{}, boom
			},
		})
		slowDone <- err
	}()
	<-slowStarted

	// El cambio optimista es visible mientras el commit está en curso.
	require.Equal(t, []string{"slow"}, c.Snapshot())

	fastDone := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), c, Change[string, struct{}]{
			Apply:  func(items []string) []string { return append(items, "fast") },
			Commit: func(ctx context.Context) (struct{}, error) { return struct{}{}, nil },
		})
		fastDone <- err
	}()

	select {
	case <-fastDone:
		t.Fatal("second writer ran while the first commit was pending")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseSlow)
	require.ErrorIs(t, <-slowDone, boom)
	require.NoError(t, <-fastDone)
	require.Equal(t, []string{"fast"}, c.Snapshot())
}

func TestReplace_WaitsForPendingRun(t *testing.T) {
	c := NewCollection([]string{"a"})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, _ = Run(context.Background(), c, Change[string, string]{
			Apply: func(items []string) []string { return append(items, "tmp") },
			Commit: func(ctx context.Context) (string, error) {
				close(started)
				<-release
				return "b", nil
			},
			Settle: func(items []string, res string) []string {
				items[len(items)-1] = res
				return items
			},
		})
		close(done)
	}()
	<-started

	replaced := make(chan struct{})
	go func() {
		c.Replace([]string{"x"})
		close(replaced)
	}()

	close(release)
	<-done
	<-replaced
	require.Equal(t, []string{"x"}, c.Snapshot())
}
