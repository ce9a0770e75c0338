package thingsboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *observability.Recorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rec := observability.NewRecorder()
	c, err := NewClient(Config{ServerURL: srv.URL, RPCTimeout: 50 * time.Millisecond}, rec)
	require.NoError(t, err)
	return c, rec
}

func TestSendTelemetryPostsArray(t *testing.T) {
	var gotPath, gotType string
	var got []map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	err := c.SendTelemetry(context.Background(), "boiler-token", []domain.Telemetry{
		domain.NewTelemetry(ts, map[string]any{"temp": 71.5}),
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/boiler-token/telemetry", gotPath)
	assert.Equal(t, "application/json", gotType)
	require.Len(t, got, 1)
	assert.Equal(t, float64(ts.UnixMilli()), got[0]["ts"])
	assert.Equal(t, map[string]any{"temp": 71.5}, got[0]["values"])
}

func TestSendTelemetrySkipsEmptyBatch(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	require.NoError(t, c.SendTelemetry(context.Background(), "tok", nil))
	assert.False(t, called)
}

func TestSendAttributesNon2xxIsError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tok/attributes", r.URL.Path)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.SendAttributes(context.Background(), "tok", map[string]any{"lastRead_x": "2024-03-01T00:00:00.000Z"})
	require.ErrorIs(t, err, ErrUnexpectedStatus)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "/api/v1/***/attributes", se.Path)
	assert.NotContains(t, err.Error(), "tok/")
}

func TestGetAttributesQueriesBothScopes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lastRead_DailyArchive,lastRead_Hourly", r.URL.Query().Get("clientKeys"))
		assert.Equal(t, "", r.URL.Query().Get("sharedKeys"))
		_, _ = io.WriteString(w, `{"client":{"lastRead_DailyArchive":"2024-03-01T08:00:00.000Z","n":1712000000000}}`)
	})

	attrs, err := c.GetAttributes(context.Background(), "tok", []string{"lastRead_DailyArchive", "lastRead_Hourly"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:00:00.000Z", attrs.Client["lastRead_DailyArchive"])
	assert.Equal(t, json.Number("1712000000000"), attrs.Client["n"])
	assert.Nil(t, attrs.Shared)
}

func TestPollCommand(t *testing.T) {
	status := http.StatusOK
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tok/rpc", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("timeout"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = io.WriteString(w, `{"id":7,"method":"getHistory","params":{"historyName":"DailyArchive"}}`)
	})

	cmd, err := c.PollCommand(context.Background(), "tok")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, 7, cmd.ID)
	assert.Equal(t, domain.MethodGetHistory, cmd.Method)
	assert.JSONEq(t, `{"historyName":"DailyArchive"}`, string(cmd.Params))

	for _, none := range []int{http.StatusRequestTimeout, http.StatusNoContent} {
		status = none
		cmd, err = c.PollCommand(context.Background(), "tok")
		require.NoError(t, err)
		assert.Nil(t, cmd)
	}

	status = http.StatusUnauthorized
	_, err = c.PollCommand(context.Background(), "tok")
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Len(t, rec.Entries("thingsboard_rpc_unauthorized"), 1)
}

func TestRespondCommand(t *testing.T) {
	var body domain.CommandResponse
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tok/rpc/42", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})

	require.NoError(t, c.RespondCommand(context.Background(), "tok", 42, domain.Failed(domain.ReasonHistoryNotFound)))
	assert.False(t, body.Success)
	assert.Equal(t, domain.ReasonHistoryNotFound, body.Message)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(Config{}, observability.NewRecorder())
	require.Error(t, err)
	_, err = NewClient(Config{ServerURL: "ftp://tb"}, observability.NewRecorder())
	require.Error(t, err)

	c, err := NewClient(Config{ServerURL: "https://tb.example.com/"}, observability.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Config().RequestTimeout)
	assert.Equal(t, 20*time.Second, c.Config().RPCTimeout)
	assert.Equal(t, time.Second, c.Config().RPCPollInterval)
}
