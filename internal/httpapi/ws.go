package httpapi

import (
	"golang.org/x/net/websocket"
)

// serveWS streams board snapshots to the client: the current one on connect,
// then every refresh the sync loop applies.
func (s *Server) serveWS(conn *websocket.Conn) {
	defer conn.Close()

	if err := websocket.JSON.Send(conn, s.state.Snapshot()); err != nil {
		return
	}

	id, snaps := s.state.Subscribe()
	defer s.state.Unsubscribe(id)

	for snap := range snaps {
		if err := websocket.JSON.Send(conn, snap); err != nil {
			return
		}
	}
}
