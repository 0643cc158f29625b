package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kantinpay/kantin/ledger/models"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) *chi.Mux {
	router := chi.NewRouter()
	NewAPI(f.service, discardLogger()).AppendRoutes(router)
	return router
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestAPI_PaymentFlow(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	rec, body := do(t, h, http.MethodPost, "/api/register", map[string]any{"uid": "CARD1", "name": "Alice", "initialBalance": 40000})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Card registered successfully", body["message"])
	card := body["card"].(map[string]any)
	require.Equal(t, "CARD1", card["uid"])
	require.Equal(t, float64(40000), card["initialBalance"])

	rec, body = do(t, h, http.MethodPost, "/api/card-tap", map[string]any{"uid": "CARD1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Card detected", body["message"])

	rec, body = do(t, h, http.MethodGet, "/api/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "CARD1", body["uid"])
	require.Equal(t, "waiting_amount", body["status"])
	require.Equal(t, "Alice", body["name"])
	require.Equal(t, float64(40000), body["balance"])

	// the kiosk may send the amount as a string
	rec, body = do(t, h, http.MethodPost, "/api/payment", `{"uid":"CARD1","amount":"15000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Payment successful", body["message"])
	require.Equal(t, float64(25000), body["balance"])
	require.Equal(t, float64(15000), body["paid"])
	require.NotContains(t, body, "warning")

	rec, body = do(t, h, http.MethodPost, "/api/payment", map[string]any{"uid": "CARD1", "amount": 30000})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Insufficient balance", body["message"])
	require.Equal(t, float64(25000), body["balance"])

	rec, _ = do(t, h, http.MethodPost, "/api/clear-pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/pending", nil)
	require.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestAPI_UnknownCardTap(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	rec, body := do(t, h, http.MethodPost, "/api/card-tap", map[string]any{"uid": "UNKNOWN"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Card not registered", body["message"])

	_, body = do(t, h, http.MethodGet, "/api/pending", nil)
	require.Equal(t, "not_registered", body["status"])
	require.NotContains(t, body, "balance")

	rec, body = do(t, h, http.MethodPost, "/api/payment", map[string]any{"uid": "UNKNOWN", "amount": 1000})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, models.ErrNotFound.Error(), body["error"])
}

func TestAPI_Errors(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	_, err := f.service.Register(context.Background(), "CARD1", "Alice", 40000)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"tap without uid", http.MethodPost, "/api/card-tap", map[string]any{}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/card-tap", `{"uid":`, http.StatusBadRequest},
		{"register missing balance", http.MethodPost, "/api/register", map[string]any{"uid": "X", "name": "Budi"}, http.StatusBadRequest},
		{"register negative balance", http.MethodPost, "/api/register", map[string]any{"uid": "X", "name": "Budi", "initialBalance": -1}, http.StatusBadRequest},
		{"register duplicate", http.MethodPost, "/api/register", map[string]any{"uid": "CARD1", "name": "Budi", "initialBalance": 1}, http.StatusConflict},
		{"payment zero", http.MethodPost, "/api/payment", map[string]any{"uid": "CARD1", "amount": 0}, http.StatusBadRequest},
		{"payment not a number", http.MethodPost, "/api/payment", `{"uid":"CARD1","amount":"abc"}`, http.StatusBadRequest},
		{"topup unknown", http.MethodPost, "/api/topup", map[string]any{"uid": "NOPE", "amount": 10}, http.StatusNotFound},
		{"get unknown", http.MethodGet, "/api/cards/NOPE", nil, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/cards/NOPE", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code)
			require.NotEmpty(t, body["error"])
		})
	}

	card, err := f.service.Lookup("CARD1")
	require.NoError(t, err)
	require.Equal(t, int64(40000), card.Balance)
}

func TestAPI_Administration(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	for _, uid := range []string{"A", "B"} {
		rec, _ := do(t, h, http.MethodPost, "/api/register", map[string]any{"uid": uid, "name": "Holder " + uid, "initialBalance": 1000})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := do(t, h, http.MethodPost, "/api/topup", map[string]any{"uid": "A", "amount": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Top up successful", body["message"])
	require.Equal(t, float64(1500), body["balance"])

	rec, body = do(t, h, http.MethodGet, "/api/cards/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1500), body["balance"])
	require.Equal(t, float64(1000), body["initialBalance"])

	rec, _ = do(t, h, http.MethodGet, "/api/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.CardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	require.Equal(t, "A", list[0].UID)
	require.False(t, list[0].NeedsReset)

	rec, body = do(t, h, http.MethodDelete, "/api/cards/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Card deleted successfully", body["message"])
	require.Equal(t, 1, f.registry.Len())

	rec, body = do(t, h, http.MethodPost, "/api/wipe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "All data deleted", body["message"])
	require.Zero(t, f.registry.Len())
}

func TestAPI_PersistWarning(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	_, err := f.service.Register(context.Background(), "CARD1", "Alice", 40000)
	require.NoError(t, err)
	f.store.FailSaves(errors.New("no space left on device"))

	rec, body := do(t, h, http.MethodPost, "/api/payment", map[string]any{"uid": "CARD1", "amount": 1000})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(39000), body["balance"])
	require.Contains(t, body["warning"], "no space left on device")
}

func TestAPI_PendingFeed(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(newTestRouter(f))
	defer srv.Close()
	_, err := f.service.Register(context.Background(), "CARD1", "Alice", 40000)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/pending/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() feedMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg feedMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	msg := read()
	require.Equal(t, "pending", msg.Type)
	require.True(t, msg.Data.IsEmpty())

	_, err = f.service.Tap(context.Background(), "CARD1")
	require.NoError(t, err)
	msg = read()
	require.Equal(t, models.PendingAwaitingAmount, msg.Data.Kind)
	require.Equal(t, "CARD1", msg.Data.UID)
	require.Equal(t, int64(40000), msg.Data.Balance)

	f.service.ClearPending()
	msg = read()
	require.True(t, msg.Data.IsEmpty())
}
