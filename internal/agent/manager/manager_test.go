package manager

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/flocksync/pkg/api"
)

type fakeCoordinator struct {
	instances []api.Instance
	commands  []api.SyncCommand
	enqueued  []string

	listCommandsErr error
	enqueueErr      error
}

func (f *fakeCoordinator) ListInstances(ctx context.Context) ([]api.Instance, error) {
	return f.instances, nil
}

func (f *fakeCoordinator) ListCommands(ctx context.Context) ([]api.SyncCommand, error) {
	return f.commands, f.listCommandsErr
}

func (f *fakeCoordinator) EnqueueCommand(ctx context.Context, instanceID string) (*api.SyncCommand, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	f.enqueued = append(f.enqueued, instanceID)
	return &api.SyncCommand{ID: "cmd-" + instanceID, InstanceID: instanceID}, nil
}

func setupTestManager(coord *fakeCoordinator) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, coord, time.Second)
}

func TestTick_EnqueuesForAutoSyncInstances(t *testing.T) {
	coord := &fakeCoordinator{
		instances: []api.Instance{
			{ID: "inst-1", Slug: "oka", AutoSync: true},
			{ID: "inst-2", Slug: "bla", AutoSync: false},
			{ID: "inst-3", Slug: "sta", AutoSync: true},
		},
	}
	svc := setupTestManager(coord)

	svc.Tick(context.Background())

	assert.Equal(t, []string{"inst-1", "inst-3"}, coord.enqueued)
}

func TestTick_SkipsInstancesWithLiveCommands(t *testing.T) {
	coord := &fakeCoordinator{
		instances: []api.Instance{
			{ID: "inst-1", Slug: "oka", AutoSync: true},
			{ID: "inst-2", Slug: "bla", AutoSync: true},
		},
		commands: []api.SyncCommand{
			{ID: "cmd-1", InstanceID: "inst-1", Acked: true},
		},
	}
	svc := setupTestManager(coord)

	svc.Tick(context.Background())

	assert.Equal(t, []string{"inst-2"}, coord.enqueued,
		"an acked command still counts as live")
}

func TestTick_ListFailureEnqueuesNothing(t *testing.T) {
	coord := &fakeCoordinator{
		instances:       []api.Instance{{ID: "inst-1", AutoSync: true}},
		listCommandsErr: assert.AnError,
	}
	svc := setupTestManager(coord)

	svc.Tick(context.Background())

	assert.Empty(t, coord.enqueued,
		"without the command list we cannot tell what is already queued")
}

func TestTick_EnqueueFailureDoesNotStopOthers(t *testing.T) {
	coord := &fakeCoordinator{
		instances: []api.Instance{
			{ID: "inst-1", AutoSync: true},
			{ID: "inst-2", AutoSync: true},
		},
	}
	svc := setupTestManager(coord)

	coord.enqueueErr = assert.AnError
	svc.Tick(context.Background())
	assert.Empty(t, coord.enqueued)

	coord.enqueueErr = nil
	svc.Tick(context.Background())
	assert.Len(t, coord.enqueued, 2)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	svc := setupTestManager(&fakeCoordinator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
