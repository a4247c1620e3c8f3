package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpulse/internal/pipeline"
)

func newTestContactClient(t *testing.T, handler http.Handler) *ContactClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewContactClient(ContactConfig{
		APIKey:          "secret-token",
		BaseURL:         srv.URL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	}, srv.Client(), nil)
	require.NotNil(t, c)
	return c
}

func TestContactClientNilWithoutKey(t *testing.T) {
	assert.Nil(t, NewContactClient(ContactConfig{}, nil, nil))
}

func TestContactClientEnrichBatch(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /batch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("X-Access-Token"))

		var req batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Data, 2)
		assert.Equal(t, "Jean", req.Data[0].FirstName)
		assert.Equal(t, "Acme", req.Data[0].Company)

		json.NewEncoder(w).Encode(batchSubmitResponse{RequestID: "req-42"})
	})
	mux.HandleFunc("GET /batch/req-42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("X-Access-Token"))

		if atomic.AddInt32(&polls, 1) < 3 {
			// Pending on the first polls.
			w.Write([]byte(`{"success":false,"reason":"pending"}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":[
			{"email":[{"email":"jean@acme.example","qualification":"nominative@pro"}],
			 "phone":[{"number":"+33 1 23 45 67 89"}]},
			{"email":[],"phone":[]}
		]}`))
	})

	c := newTestContactClient(t, mux)
	infos, err := c.EnrichBatch(context.Background(), []pipeline.ContactQuery{
		{FirstName: "Jean", LastName: "Dupont", Company: "Acme"},
		{FirstName: "Marie", LastName: "Martin", Company: "Beta"},
	})

	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "jean@acme.example", infos[0].Email)
	assert.Equal(t, "+33 1 23 45 67 89", infos[0].Phone)
	assert.Empty(t, infos[1].Email)
	assert.Empty(t, infos[1].Phone)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

func TestContactClientStringFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /batch", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(batchSubmitResponse{RequestID: "req-1"})
	})
	mux.HandleFunc("GET /batch/req-1", func(w http.ResponseWriter, _ *http.Request) {
		// Some provider responses carry plain strings instead of lists.
		w.Write([]byte(`{"success":true,"data":[{"email":"a@b.example","phone":"+1 555"}]}`))
	})

	c := newTestContactClient(t, mux)
	infos, err := c.EnrichBatch(context.Background(), []pipeline.ContactQuery{{FirstName: "A"}})

	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "a@b.example", infos[0].Email)
	assert.Equal(t, "+1 555", infos[0].Phone)
}

func TestContactClientSubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /batch", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"invalid token"}`))
	})

	c := newTestContactClient(t, mux)
	_, err := c.EnrichBatch(context.Background(), []pipeline.ContactQuery{{FirstName: "A"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestContactClientPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /batch", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(batchSubmitResponse{RequestID: "req-9"})
	})
	mux.HandleFunc("GET /batch/req-9", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":false,"reason":"pending"}`))
	})

	c := newTestContactClient(t, mux)
	_, err := c.EnrichBatch(context.Background(), []pipeline.ContactQuery{{FirstName: "A"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestContactClientEmptyBatch(t *testing.T) {
	c := newTestContactClient(t, http.NewServeMux())
	infos, err := c.EnrichBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, infos)
}
