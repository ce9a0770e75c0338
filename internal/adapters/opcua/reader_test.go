package opcua

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func historyPage(cont []byte, values ...*ua.DataValue) *ua.HistoryReadResponse {
	return &ua.HistoryReadResponse{Results: []*ua.HistoryReadResult{{
		StatusCode:        ua.StatusOK,
		ContinuationPoint: cont,
		HistoryData:       &ua.ExtensionObject{Value: &ua.HistoryData{DataValues: values}},
	}}}
}

func point(ts time.Time, v any) *ua.DataValue {
	return &ua.DataValue{
		Value:           ua.MustVariant(v),
		Status:          ua.StatusOK,
		SourceTimestamp: ts,
	}
}

func TestReadValuesMapsPerNodeStatus(t *testing.T) {
	client := newFakeClient()
	client.readFn = func(req *ua.ReadRequest) (*ua.ReadResponse, error) {
		return &ua.ReadResponse{Results: []*ua.DataValue{
			{Value: ua.MustVariant(int32(71)), Status: ua.StatusOK},
			{Status: ua.StatusBadNodeIDUnknown},
		}}, nil
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	values, err := r.ReadValues(context.Background(), []string{"ns=2;s=Temp", "ns=abc;s=Broken", "ns=2;s=Missing"})
	require.NoError(t, err)
	require.Len(t, values, 3)

	assert.True(t, values[0].OK())
	assert.Equal(t, int64(71), values[0].Value)

	assert.False(t, values[1].OK())
	assert.Equal(t, "ns=abc;s=Broken", values[1].NodeID)

	assert.False(t, values[2].OK())
	assert.ErrorIs(t, values[2].Err, ua.StatusBadNodeIDUnknown)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.reads, 1)
	assert.Len(t, client.reads[0].NodesToRead, 2)
}

func TestReadValuesWithoutSession(t *testing.T) {
	m, err := NewSessionManager(testConfig(), observability.NewRecorder())
	require.NoError(t, err)
	r := NewReader(m, observability.NewRecorder())

	_, err = r.ReadValues(context.Background(), []string{"ns=2;s=Temp"})
	require.ErrorIs(t, err, ErrSessionNotEstablished)
}

func TestReadValuesCallErrorWakesSupervisor(t *testing.T) {
	client := newFakeClient()
	client.readFn = func(*ua.ReadRequest) (*ua.ReadResponse, error) {
		return nil, ua.StatusBadConnectionClosed
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	_, err := r.ReadValues(context.Background(), []string{"ns=2;s=Temp"})
	require.Error(t, err)

	select {
	case <-m.wake:
	default:
		t.Fatal("expected supervisor to be notified")
	}
}

func TestReadHistoryPaginatesAndSorts(t *testing.T) {
	client := newFakeClient()
	var continuations [][]byte
	client.historyFn = func(call int, nodes []*ua.HistoryReadValueID, details *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		continuations = append(continuations, nodes[0].ContinuationPoint)
		assert.Equal(t, uint32(2), details.NumValuesPerNode)
		assert.True(t, details.ReturnBounds)
		if call == 1 {
			return historyPage([]byte{0x01},
				point(t0.Add(2*time.Minute), 2.5),
				&ua.DataValue{Value: ua.MustVariant(9.9), Status: ua.StatusBadNoData, SourceTimestamp: t0},
			), nil
		}
		return historyPage(nil,
			point(t0.Add(time.Minute), 1.5),
			&ua.DataValue{Value: ua.MustVariant(3.5), Status: ua.StatusOK, ServerTimestamp: t0.Add(3 * time.Minute)},
		), nil
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	points, err := r.ReadHistory(context.Background(), domain.HistoryRequest{
		NodeID:    "ns=2;s=Energy",
		Start:     t0,
		End:       t0.Add(time.Hour),
		MaxValues: 2,
	})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 1.5, points[0].Value)
	assert.Equal(t, 2.5, points[1].Value)
	assert.Equal(t, 3.5, points[2].Value)
	assert.True(t, points[2].Timestamp.Equal(t0.Add(3*time.Minute)))

	require.Len(t, continuations, 2)
	assert.Empty(t, continuations[0])
	assert.Equal(t, []byte{0x01}, continuations[1])
}

func TestReadHistoryRetriesOnce(t *testing.T) {
	client := newFakeClient()
	client.historyFn = func(call int, _ []*ua.HistoryReadValueID, _ *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		if call == 1 {
			return nil, ua.StatusBadTimeout
		}
		return historyPage(nil, point(t0, 42.0)), nil
	}
	m, _ := connectedManager(t, client, nil)
	rec := observability.NewRecorder()
	r := NewReader(m, rec)

	points, err := r.ReadHistory(context.Background(), domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 2, client.historyCalls())
	assert.Len(t, rec.Entries("opcua_history_read_failed"), 1)
}

func TestReadHistoryNeverReturnsPartialWindow(t *testing.T) {
	client := newFakeClient()
	client.historyFn = func(call int, _ []*ua.HistoryReadValueID, _ *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		if call%2 == 1 {
			return historyPage([]byte{0x07}, point(t0, 1.0)), nil
		}
		return &ua.HistoryReadResponse{Results: []*ua.HistoryReadResult{{
			StatusCode: ua.StatusBadContinuationPointInvalid,
		}}}, nil
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	points, err := r.ReadHistory(context.Background(), domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(time.Hour)})
	require.ErrorIs(t, err, ErrHistoryRead)
	assert.Nil(t, points)
	assert.Equal(t, 4, client.historyCalls())
	assert.Equal(t, [][]byte{{0x07}, {0x07}}, client.releasedPoints())
}

func TestReadHistoryStopsAtPageLimit(t *testing.T) {
	client := newFakeClient()
	client.historyFn = func(int, []*ua.HistoryReadValueID, *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		return historyPage([]byte{0x01}, point(t0, 1.0)), nil
	}
	m, _ := connectedManager(t, client, func(c *Config) { c.HistoryMaxPages = 3 })
	r := NewReader(m, observability.NewRecorder())

	_, err := r.ReadHistory(context.Background(), domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(time.Hour)})
	require.ErrorIs(t, err, ErrHistoryRead)
	assert.Equal(t, 6, client.historyCalls())
	assert.Equal(t, [][]byte{{0x01}, {0x01}}, client.releasedPoints())
}

func TestReadHistoryReleasesContinuationOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient()
	client.historyFn = func(int, []*ua.HistoryReadValueID, *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		cancel()
		return historyPage([]byte{0x09}, point(t0, 1.0)), nil
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	_, err := r.ReadHistory(ctx, domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(time.Hour)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.historyCalls())

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.released, 1)
	req := client.released[0]
	assert.True(t, req.ReleaseContinuationPoints)
	require.Len(t, req.NodesToRead, 1)
	assert.Equal(t, []byte{0x09}, req.NodesToRead[0].ContinuationPoint)
	assert.Equal(t, "ns=2;s=Energy", req.NodesToRead[0].NodeID.String())
}

func TestReadHistoryCompleteReadReleasesNothing(t *testing.T) {
	client := newFakeClient()
	client.historyFn = func(call int, _ []*ua.HistoryReadValueID, _ *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		if call == 1 {
			return historyPage([]byte{0x02}, point(t0, 1.0)), nil
		}
		return historyPage(nil, point(t0.Add(time.Minute), 2.0)), nil
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	points, err := r.ReadHistory(context.Background(), domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Empty(t, client.releasedPoints())
}

func TestReadHistoryRejectsInvertedRange(t *testing.T) {
	m, _ := connectedManager(t, newFakeClient(), nil)
	r := NewReader(m, observability.NewRecorder())

	_, err := r.ReadHistory(context.Background(), domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(-time.Second)})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestReadHistoryHonoursCancellation(t *testing.T) {
	client := newFakeClient()
	client.historyFn = func(int, []*ua.HistoryReadValueID, *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
		return nil, errors.New("boom")
	}
	m, _ := connectedManager(t, client, nil)
	r := NewReader(m, observability.NewRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ReadHistory(ctx, domain.HistoryRequest{NodeID: "ns=2;s=Energy", Start: t0, End: t0.Add(time.Hour)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.historyCalls())
}

func TestVariantToValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		in   any
		want any
	}{
		{true, true},
		{"on", "on"},
		{float32(1.5), 1.5},
		{int16(-4), int64(-4)},
		{uint32(7), int64(7)},
		{ts, "2024-01-02T03:04:05Z"},
		{&ua.LocalizedText{Text: "Running"}, "Running"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, variantToValue(ua.MustVariant(tc.in)), "%T", tc.in)
	}
	assert.Nil(t, variantToValue(nil))
}
