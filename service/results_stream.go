package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"

	"github.com/nexus-skeleton/libcheck/metrics"
	"github.com/nexus-skeleton/libcheck/types"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamBuffer       = 16
)

var upgrader = websocket.Upgrader{
	// Results are read-only and the API already allows every origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes the full result list on
// connect and after every registry change. A slow client misses intermediate
// snapshots rather than blocking registry mutations.
func (s *ResultsServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("results stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates := make(chan []types.TestRecord, streamBuffer)
	unsubscribe := s.registry.Subscribe(func(results []types.TestRecord) {
		select {
		case updates <- results:
		default:
			// drop the oldest snapshot so the newest always gets through
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- results:
			default:
			}
		}
	})
	defer unsubscribe()

	// reader detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, s.registry.Results()); err != nil {
		return
	}
	for {
		select {
		case results := <-updates:
			if err := writeSnapshot(conn, results); err != nil {
				log.Debug("results stream closed", "remote", r.RemoteAddr, "err", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, results []types.TestRecord) error {
	msg, err := json.Marshal(results)
	if err != nil {
		metrics.RecordErrorDetails("results stream", err)
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}
