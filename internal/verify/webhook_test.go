package verify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSink_Publish(t *testing.T) {
	var got Event
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	err := sink.Publish(Event{Type: EventContactDone, BatchID: "b1", Index: 3, Total: 10, ContactName: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, EventContactDone, got.Type)
	assert.Equal(t, "b1", got.BatchID)
	assert.Equal(t, 3, got.Index)
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL).Publish(Event{Type: EventBatchStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWebhookSink_Unreachable(t *testing.T) {
	err := NewWebhookSink("http://127.0.0.1:1/events").Publish(Event{Type: EventBatchStart})
	require.Error(t, err)
}
