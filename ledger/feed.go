package ledger

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kantinpay/kantin/ledger/models"
	"golang.org/x/exp/slog"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type feedMessage struct {
	Type string         `json:"type"`
	Data models.Pending `json:"data"`
}

// pendingFeed pushes the slot to the kiosk whenever it changes, starting with
// the current value.
func (a *API) pendingFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		a.logger.Debug("pending feed upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	updates, cancel := a.service.SubscribePending()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeFeed(conn, a.service.Pending()); err != nil {
		return
	}

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFeed(conn, p); err != nil {
				a.logger.Debug("pending feed write failed", slog.Any("err", err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFeed(conn *websocket.Conn, p models.Pending) error {
	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return conn.WriteJSON(feedMessage{Type: "pending", Data: p})
}
