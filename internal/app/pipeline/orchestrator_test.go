package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ghalamif/uabridge/internal/domain"
)

type fakeSession struct {
	runs    atomic.Int32
	stopped atomic.Bool
}

func (s *fakeSession) Run(ctx context.Context) error {
	s.runs.Add(1)
	<-ctx.Done()
	s.stopped.Store(true)
	return nil
}

func (s *fakeSession) Connected() bool { return s.runs.Load() > 0 && !s.stopped.Load() }

func TestOrchestratorRequiresDevices(t *testing.T) {
	f := newFixture(t, pollStart)
	err := NewOrchestrator(nil, f.deps, nil, time.Millisecond).Run(context.Background())
	require.ErrorIs(t, err, ErrNoDevices)
}

func TestOrchestratorRejectsBadScheduleBeforeStarting(t *testing.T) {
	f := newFixture(t, pollStart)
	dev := boilerDevice()
	dev.Histories[0].CheckCron = "61 * * * *"
	session := &fakeSession{}

	err := NewOrchestrator([]domain.Device{dev}, f.deps, session, time.Millisecond).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(0), session.runs.Load())
}

func TestOrchestratorRunsDeviceTasksUntilCancelled(t *testing.T) {
	f := newFixture(t, pollStart)
	pump := domain.Device{
		Name:  "Pump7",
		Token: "pump-token",
		Subscription: &domain.Subscription{
			Interval: 1000,
			Tags:     []domain.Tag{{Name: "rpm", NodeID: "ns=3;s=Pump7.Rpm"}},
		},
	}
	session := &fakeSession{}

	var polled atomic.Int32
	f.source.EXPECT().ReadValues(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ids []string) ([]domain.TagValue, error) {
			polled.Add(1)
			out := make([]domain.TagValue, len(ids))
			for i := range ids {
				out[i] = domain.TagValue{NodeID: ids[i], Value: 1.0}
			}
			return out, nil
		}).Times(2)
	f.sink.EXPECT().SendAttributes(gomock.Any(), "boiler-token", gomock.Any()).Return(nil)
	f.sink.EXPECT().SendAttributes(gomock.Any(), "pump-token", map[string]any{"rpm": 1.0}).Return(nil)
	f.sink.EXPECT().PollCommand(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	o := NewOrchestrator([]domain.Device{boilerDevice(), pump}, f.deps, session, time.Millisecond)
	go func() { done <- o.Run(ctx) }()

	// one poll per device; further polls wait on the mock clock
	require.Eventually(t, func() bool { return polled.Load() == 2 && session.Connected() }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
	assert.True(t, session.stopped.Load())

	started := f.rec.Entries("orchestrator_started")
	require.Len(t, started, 1)
	// boiler: poller, 2 schedulers, commands; pump: poller, commands
	assert.Equal(t, 6, started[0].Field("tasks"))
}
