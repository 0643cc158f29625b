package readerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kantinpay/kantin/ledger/models"
	"github.com/stretchr/testify/require"
)

func TestTap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/card-tap", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var req models.TapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.UID == "CARD1" {
			w.Write([]byte(`{"success":true,"message":"Card detected","card":{"uid":"CARD1","name":"Alice","balance":40000}}`))
			return
		}
		w.Write([]byte(`{"success":false,"message":"Card not registered"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	reply, err := c.Tap(context.Background(), "CARD1")
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.NotNil(t, reply.Card)
	require.Equal(t, int64(40000), reply.Card.Balance)

	reply, err = c.Tap(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	require.False(t, reply.Success)
	require.Nil(t, reply.Card)
}

func TestTap_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid request: UID required"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client()).Tap(context.Background(), "")
	require.ErrorContains(t, err, "card-tap: status=400")
}

func TestPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uid":"CARD1","name":"Alice","balance":25000,"status":"waiting_amount","timestamp":1792288800000}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, nil).Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.PendingAwaitingAmount, p.Kind)
	require.Equal(t, int64(25000), p.Balance)
}
