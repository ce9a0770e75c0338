package opcua

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gopcua/opcua/id"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

var (
	// ErrHistoryRead is returned when a history window could not be read in full.
	ErrHistoryRead = errors.New("opcua: history read failed")
	// ErrInvalidRange is returned for a window whose start is after its end.
	ErrInvalidRange = errors.New("opcua: start time is after end time")
)

const historyAttempts = 2

// Reader implements ports.Source on top of the shared session.
type Reader struct {
	sessions *SessionManager
	cfg      Config
	obs      ports.Observability

	nodeCache sync.Map // string -> *ua.NodeID
}

func NewReader(sessions *SessionManager, obs ports.Observability) *Reader {
	return &Reader{
		sessions: sessions,
		cfg:      sessions.cfg,
		obs:      obs,
	}
}

// ReadValues reads every node in a single request. Nodes with an unparseable
// id or a non-Good status carry an error in their TagValue.
func (r *Reader) ReadValues(ctx context.Context, nodeIDs []string) ([]domain.TagValue, error) {
	out := make([]domain.TagValue, len(nodeIDs))
	nodesToRead := make([]*ua.ReadValueID, 0, len(nodeIDs))
	index := make([]int, 0, len(nodeIDs))

	for i, raw := range nodeIDs {
		out[i].NodeID = raw
		nodeID, err := r.nodeID(raw)
		if err != nil {
			out[i].Err = err
			continue
		}
		nodesToRead = append(nodesToRead, &ua.ReadValueID{
			NodeID:       nodeID,
			AttributeID:  ua.AttributeIDValue,
			DataEncoding: &ua.QualifiedName{},
		})
		index = append(index, i)
	}
	if len(nodesToRead) == 0 {
		return out, nil
	}

	var resp *ua.ReadResponse
	err := r.sessions.withClient(ctx, func(c uaClient) error {
		reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
		defer cancel()

		var err error
		resp, err = c.Read(reqCtx, &ua.ReadRequest{
			MaxAge:             0,
			TimestampsToReturn: ua.TimestampsToReturnBoth,
			NodesToRead:        nodesToRead,
		})
		return err
	})
	if err != nil {
		r.reportCallError(err)
		return nil, fmt.Errorf("read %d nodes: %w", len(nodesToRead), err)
	}

	for j, i := range index {
		if j >= len(resp.Results) || resp.Results[j] == nil {
			out[i].Err = fmt.Errorf("no result for node %s", nodeIDs[i])
			continue
		}
		dv := resp.Results[j]
		if !isGood(dv.Status) {
			out[i].Err = dv.Status
			continue
		}
		out[i].Value = variantToValue(dv.Value)
	}
	return out, nil
}

// ReadHistory reads the raw archive of one node over [Start, End). A failed
// attempt is retried once after HistoryRetryDelay; if that fails too nothing
// is returned, so callers never see a partial window.
func (r *Reader) ReadHistory(ctx context.Context, req domain.HistoryRequest) ([]domain.HistoryPoint, error) {
	if req.Start.After(req.End) {
		return nil, fmt.Errorf("%w: [%s, %s)", ErrInvalidRange, req.Start, req.End)
	}
	nodeID, err := r.nodeID(req.NodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryRead, err)
	}
	if req.MaxValues == 0 {
		req.MaxValues = r.cfg.HistoryMaxValues
	}

	var lastErr error
	for attempt := 1; attempt <= historyAttempts; attempt++ {
		points, err := r.readHistoryOnce(ctx, nodeID, req)
		if err == nil {
			return points, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		r.obs.LogError("opcua_history_read_failed", err,
			ports.F("node_id", req.NodeID),
			ports.F("attempt", attempt),
			ports.F("start", req.Start),
			ports.F("end", req.End))

		if attempt < historyAttempts {
			if err := r.sleep(ctx, r.cfg.HistoryRetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: node %s after %d attempts: %w", ErrHistoryRead, req.NodeID, historyAttempts, lastErr)
}

func (r *Reader) readHistoryOnce(ctx context.Context, nodeID *ua.NodeID, req domain.HistoryRequest) ([]domain.HistoryPoint, error) {
	details := &ua.ReadRawModifiedDetails{
		IsReadModified:   false,
		StartTime:        req.Start,
		EndTime:          req.End,
		NumValuesPerNode: req.MaxValues,
		ReturnBounds:     r.cfg.returnBounds(),
	}

	points, continuation, err := r.readPages(ctx, nodeID, req, details)
	if err != nil {
		r.releaseContinuation(nodeID, req.NodeID, details, continuation)
		return nil, err
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// readPages follows continuation points until the server reports the end of
// the window. On error it also returns the continuation point still held by
// the server, if any.
func (r *Reader) readPages(ctx context.Context, nodeID *ua.NodeID, req domain.HistoryRequest, details *ua.ReadRawModifiedDetails) ([]domain.HistoryPoint, []byte, error) {
	var (
		points       []domain.HistoryPoint
		continuation []byte
	)
	for page := 0; ; page++ {
		if page >= r.cfg.HistoryMaxPages {
			return nil, continuation, fmt.Errorf("history exceeded %d pages of %d values", r.cfg.HistoryMaxPages, req.MaxValues)
		}

		var resp *ua.HistoryReadResponse
		err := r.sessions.withClient(ctx, func(c uaClient) error {
			reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
			defer cancel()

			var err error
			resp, err = c.HistoryReadRawModified(reqCtx, []*ua.HistoryReadValueID{{
				NodeID:            nodeID,
				DataEncoding:      &ua.QualifiedName{},
				ContinuationPoint: continuation,
			}}, details)
			return err
		})
		if err != nil {
			r.reportCallError(err)
			return nil, continuation, err
		}
		if len(resp.Results) == 0 || resp.Results[0] == nil {
			return nil, continuation, errors.New("empty history response")
		}

		res := resp.Results[0]
		if !isGood(res.StatusCode) {
			return nil, continuation, res.StatusCode
		}
		points = append(points, r.decodeHistory(req.NodeID, res.HistoryData)...)

		if len(res.ContinuationPoint) == 0 {
			return points, nil, nil
		}
		continuation = res.ContinuationPoint
	}
}

// releaseContinuation tells the server to drop a continuation point of an
// abandoned read, so it does not count against the session's limit.
func (r *Reader) releaseContinuation(nodeID *ua.NodeID, raw string, details *ua.ReadRawModifiedDetails, continuation []byte) {
	if len(continuation) == 0 {
		return
	}
	req := &ua.HistoryReadRequest{
		TimestampsToReturn:        ua.TimestampsToReturnNeither,
		ReleaseContinuationPoints: true,
		NodesToRead: []*ua.HistoryReadValueID{{
			NodeID:            nodeID,
			DataEncoding:      &ua.QualifiedName{},
			ContinuationPoint: continuation,
		}},
		HistoryReadDetails: &ua.ExtensionObject{
			TypeID:       ua.NewFourByteExpandedNodeID(0, id.ReadRawModifiedDetails_Encoding_DefaultBinary),
			EncodingMask: ua.ExtensionObjectBinary,
			Value:        details,
		},
	}

	// the read's own ctx may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RequestTimeout)
	defer cancel()
	err := r.sessions.withClient(ctx, func(c uaClient) error {
		return c.Send(ctx, req, func(ua.Response) error { return nil })
	})
	if err != nil {
		r.obs.LogDebug("opcua_continuation_release_failed",
			ports.F("node_id", raw),
			ports.F("error", err.Error()))
	}
}

func (r *Reader) decodeHistory(nodeID string, eo *ua.ExtensionObject) []domain.HistoryPoint {
	if eo == nil || eo.Value == nil {
		return nil
	}
	data, ok := eo.Value.(*ua.HistoryData)
	if !ok {
		r.obs.LogWarn("opcua_history_unexpected_payload", fmt.Errorf("type %T", eo.Value),
			ports.F("node_id", nodeID))
		return nil
	}

	points := make([]domain.HistoryPoint, 0, len(data.DataValues))
	for _, dv := range data.DataValues {
		if dv == nil {
			continue
		}
		if !isGood(dv.Status) {
			r.obs.LogDebug("opcua_history_value_skipped",
				ports.F("node_id", nodeID),
				ports.F("status", dv.Status.Error()))
			continue
		}
		ts := dv.SourceTimestamp
		if ts.IsZero() {
			ts = dv.ServerTimestamp
		}
		if ts.IsZero() {
			continue
		}
		points = append(points, domain.HistoryPoint{Timestamp: ts, Value: variantToValue(dv.Value)})
	}
	return points
}

func (r *Reader) nodeID(raw string) (*ua.NodeID, error) {
	if v, ok := r.nodeCache.Load(raw); ok {
		return v.(*ua.NodeID), nil
	}
	parsed, err := ua.ParseNodeID(raw)
	if err != nil {
		return nil, fmt.Errorf("parse node id %q: %w", raw, err)
	}
	r.nodeCache.Store(raw, parsed)
	return parsed, nil
}

// reportCallError wakes the session supervisor on call-level failures.
func (r *Reader) reportCallError(err error) {
	if errors.Is(err, ErrSessionNotEstablished) || errors.Is(err, context.Canceled) {
		return
	}
	r.sessions.Notify()
}

func (r *Reader) sleep(ctx context.Context, d time.Duration) error {
	t := r.sessions.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ ports.Source = (*Reader)(nil)
