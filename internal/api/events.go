package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// handleJobEvents handles GET /api/jobs/events. The current job table is sent first,
// then every status change as it happens.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no change made after it is missed.
	subscription := s.downloads.Manager().Subscribe(eventBuffer)
	defer subscription.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.wsMu.Lock()
	s.wsConnections[conn] = true
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.wsConnections, conn)
		s.wsMu.Unlock()
		conn.Close()
	}()

	// Clients only read; a failed read means the peer went away.
	closed := make(chan struct{})

	go func() {
		defer close(closed)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case job, ok := <-subscription.C:
			if !ok {
				return
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}

			if err := conn.WriteJSON(job); err != nil {
				s.logger.Debug("Job event stream closed", zap.Error(err))

				return
			}
		}
	}
}
