package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"math-rush-service/internal/app"
	"math-rush-service/internal/domain"
)

// WSHandler upgrades participant connections and wires them into the round
// coordinator.
type WSHandler struct {
	coordinator *app.Coordinator
	hub         *Hub
	upgrader    websocket.Upgrader
}

func NewWSHandler(coordinator *app.Coordinator, hub *Hub) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type setUsernamePayload struct {
	Name string `json:"name"`
}

type restoreSessionPayload struct {
	Token string `json:"token"`
}

type submitAnswerPayload struct {
	Answer string `json:"answer"`
}

// ServeWS runs one participant connection: a writer goroutine drains the
// hub channel while this goroutine reads the client's messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := h.hub.register()

	// Identity until setUsername/restoreSession: a handle derived from the
	// connection id, as anonymous submissions still enter the round log.
	identity := "User_" + c.id[:6]
	h.hub.setUsername(c.id, identity)

	defer func() {
		h.hub.unregister(c.id)
		h.coordinator.OnDisconnect(identity)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ev := range c.send {
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ws write error")
				return
			}
		}
	}()

	h.coordinator.OnConnect(c.id)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "setUsername":
			var payload setUsernamePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			identity = h.coordinator.SetUsername(r.Context(), c.id, payload.Name, identity)
			h.hub.setUsername(c.id, identity)

		case "restoreSession":
			var payload restoreSessionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			if username := h.coordinator.RestoreSession(r.Context(), c.id, payload.Token); username != "" {
				identity = username
				h.hub.setUsername(c.id, identity)
			}

		case "submitAnswer":
			var payload submitAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			correct, err := h.coordinator.SubmitAnswer(identity, payload.Answer)
			if err == domain.ErrNoActiveRound {
				continue
			}
			if !correct {
				h.hub.Send(c.id, app.WrongAnswerEvent())
			}

		case "getLeaderboard":
			h.coordinator.SendLeaderboard(r.Context(), c.id)
		}
	}
}
