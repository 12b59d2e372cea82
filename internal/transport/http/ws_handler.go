package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/app"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

const (
	writeWait = 10 * time.Second
	// Parse failures tolerated before the connection is dropped.
	maxParseFailures = 5
	sendBuffer       = 64
)

// WSHandler is the connection gateway: it upgrades connections, tracks
// each connection's (session, player, host, authenticated) state,
// dispatches inbound envelopes to the engine, and pumps session
// broadcasts back out.
type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
	pongWait time.Duration
}

func NewWSHandler(engine *app.Engine, pongWait time.Duration) *WSHandler {
	if pongWait <= 0 {
		pongWait = 3 * time.Minute
	}
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pongWait: pongWait,
	}
}

// client is the per-connection state. Only the read loop mutates it.
type client struct {
	id   string
	ws   *websocket.Conn
	send chan outbound
	done chan struct{}

	sessionID     string
	playerID      string
	hostID        string
	isHost        bool
	authenticated bool
	cancelSub     func()
	parseFailures int
}

func (c *client) enqueue(msg outbound) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.Printf("ws %s: send buffer full, dropping %s", c.id, msg.Type)
	}
}

func (c *client) reply(err error) {
	c.enqueue(outbound{Type: "error", Data: errorFor(err)})
}

// Inbound payloads.

type authenticateData struct {
	Ticket string `json:"ticket"`
}

type joinData struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type teamData struct {
	Team string `json:"team"`
}

type answerData struct {
	QuestionID       string `json:"questionId"`
	Choice           int    `json:"choice"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

type kickData struct {
	PlayerID string `json:"playerId"`
}

// Direct reply payloads.

type authenticatedData struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type joinedData struct {
	Player           domain.Player        `json:"player"`
	SessionID        string               `json:"sessionId"`
	Code             string               `json:"code"`
	Settings         domain.Settings      `json:"settings"`
	Status           domain.SessionStatus `json:"status"`
	Rejoined         bool                 `json:"rejoined"`
	Question         *app.QuestionPayload `json:"question,omitempty"`
	SecondsRemaining int                  `json:"secondsRemaining,omitempty"`
}

type answerAcceptedData struct {
	QuestionID string `json:"questionId"`
	Points     int    `json:"points"`
}

type playersSyncData struct {
	Players []domain.Player `json:"players"`
}

// ServeWS upgrades the request and runs the connection's read loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan outbound, sendBuffer),
		done: make(chan struct{}),
	}
	go h.writePump(c)
	h.readLoop(c)
	h.cleanup(c)
}

func (h *WSHandler) writePump(c *client) {
	pingPeriod := h.pongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(c *client) {
	_ = c.ws.SetReadDeadline(time.Now().Add(h.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.parseFailures++
			c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeMalformed, Detail: "unparseable message"}})
			if c.parseFailures >= maxParseFailures {
				return
			}
			continue
		}
		c.parseFailures = 0
		h.dispatch(c, env)
	}
}

func (h *WSHandler) cleanup(c *client) {
	if c.cancelSub != nil {
		c.cancelSub()
	}
	if c.sessionID != "" {
		if c.playerID != "" {
			// Transport drops are disconnects, not errors; the player
			// can reconnect by name while the session lives.
			if err := h.engine.Disconnect(c.sessionID, c.playerID); err != nil && err != domain.ErrSessionNotFound && err != domain.ErrPlayerNotFound {
				log.Printf("ws %s: disconnect: %v", c.id, err)
			}
		}
		if c.isHost {
			if session, err := h.engine.SessionByID(c.sessionID); err == nil {
				session.DetachHost(c.id)
			}
		}
	}
	close(c.done)
}

// subscribe attaches the connection to its session's broadcast stream.
func (h *WSHandler) subscribe(c *client, session *app.Session) error {
	events, cancel, err := session.Subscribe()
	if err != nil {
		return err
	}
	c.cancelSub = cancel
	go func() {
		for evt := range events {
			c.enqueue(outbound{Type: evt.Type, Data: evt.Data})
			if evt.Type == app.EvtKicked && c.playerID != "" {
				if ref, ok := evt.Data.(app.PlayerRefPayload); ok && ref.PlayerID == c.playerID {
					c.ws.Close()
					return
				}
			}
		}
		// The session was closed out from under us; force a reconnect.
		c.ws.Close()
	}()
	return nil
}

func (h *WSHandler) dispatch(c *client, env Envelope) {
	switch env.Type {
	case "authenticate":
		h.handleAuthenticate(c, env.Data)
	case "host-create":
		h.handleHostCreate(c)
	case "join":
		h.handleJoin(c, env.Data)
	case "select-team":
		h.handleSelectTeam(c, env.Data)
	case "player-ready":
		h.handlePlayerReady(c)
	case "start":
		h.hostAction(c, func() error {
			_, err := h.engine.StartSession(c.sessionID)
			return err
		})
	case "submit-answer":
		h.handleSubmitAnswer(c, env.Data)
	case "reveal":
		h.hostAction(c, func() error {
			_, err := h.engine.Reveal(c.sessionID)
			return err
		})
	case "advance":
		h.hostAction(c, func() error {
			_, _, err := h.engine.Advance(c.sessionID)
			return err
		})
	case "end":
		h.hostAction(c, func() error {
			_, err := h.engine.EndSession(c.sessionID)
			return err
		})
	case "kick":
		h.handleKick(c, env.Data)
	default:
		c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeUnknownType, Detail: "unknown message type: " + env.Type}})
	}
}

func (h *WSHandler) handleAuthenticate(c *client, raw json.RawMessage) {
	var data authenticateData
	if err := json.Unmarshal(raw, &data); err != nil || data.Ticket == "" {
		c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeMalformed, Detail: "invalid authenticate payload"}})
		return
	}
	session, err := h.engine.Authenticate(context.Background(), data.Ticket)
	if err != nil {
		c.reply(err)
		return
	}
	c.authenticated = true
	c.hostID = session.HostID()
	c.sessionID = session.ID()
	c.enqueue(outbound{Type: "authenticated", Data: authenticatedData{SessionID: session.ID(), Code: session.Code()}})
}

func (h *WSHandler) handleHostCreate(c *client) {
	if !c.authenticated || c.sessionID == "" {
		c.reply(domain.ErrAuthRequired)
		return
	}
	session, err := h.engine.SessionByID(c.sessionID)
	if err != nil {
		c.reply(err)
		return
	}
	if c.cancelSub == nil {
		if err := h.subscribe(c, session); err != nil {
			c.reply(err)
			return
		}
	}
	c.isHost = true
	session.AttachHost(c.id)
	snap := session.Snapshot()
	c.enqueue(outbound{Type: "created", Data: snap})
	c.enqueue(outbound{Type: "players-sync", Data: playersSyncData{Players: snap.Players}})
}

func (h *WSHandler) handleJoin(c *client, raw json.RawMessage) {
	if c.sessionID != "" {
		c.reply(domain.ErrInvalidState)
		return
	}
	var data joinData
	if err := json.Unmarshal(raw, &data); err != nil || data.Code == "" {
		c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeMalformed, Detail: "invalid join payload"}})
		return
	}
	session, player, rejoined, err := h.engine.Join(context.Background(), data.Code, data.Name)
	if err != nil {
		c.reply(err)
		return
	}
	c.sessionID = session.ID()
	c.playerID = player.ID
	if err := h.subscribe(c, session); err != nil {
		c.reply(err)
		return
	}

	reply := joinedData{
		Player:    player,
		SessionID: session.ID(),
		Code:      session.Code(),
		Settings:  session.Settings(),
		Status:    session.Status(),
		Rejoined:  rejoined,
	}
	if question, remaining, open := session.CurrentQuestion(); open {
		reply.Question = &question
		reply.SecondsRemaining = remaining
	}
	c.enqueue(outbound{Type: "joined", Data: reply})
}

func (h *WSHandler) handleSelectTeam(c *client, raw json.RawMessage) {
	if c.sessionID == "" || c.playerID == "" {
		c.reply(domain.ErrNotInSession)
		return
	}
	var data teamData
	if err := json.Unmarshal(raw, &data); err != nil {
		c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeMalformed, Detail: "invalid select-team payload"}})
		return
	}
	if _, err := h.engine.SetPlayerTeam(c.sessionID, c.playerID, data.Team); err != nil {
		c.reply(err)
	}
}

func (h *WSHandler) handlePlayerReady(c *client) {
	if c.sessionID == "" || c.playerID == "" {
		c.reply(domain.ErrNotInSession)
		return
	}
	if _, err := h.engine.SetPlayerReady(c.sessionID, c.playerID); err != nil {
		c.reply(err)
	}
}

func (h *WSHandler) handleSubmitAnswer(c *client, raw json.RawMessage) {
	if c.sessionID == "" || c.playerID == "" {
		c.reply(domain.ErrNotInSession)
		return
	}
	var data answerData
	if err := json.Unmarshal(raw, &data); err != nil || data.QuestionID == "" {
		c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeMalformed, Detail: "invalid submit-answer payload"}})
		return
	}
	points, err := h.engine.SubmitAnswer(c.sessionID, c.playerID, data.QuestionID, data.Choice, data.SecondsRemaining)
	if err != nil {
		c.reply(err)
		return
	}
	c.enqueue(outbound{Type: "answer-accepted", Data: answerAcceptedData{QuestionID: data.QuestionID, Points: points}})
}

func (h *WSHandler) handleKick(c *client, raw json.RawMessage) {
	if !h.requireHost(c) {
		return
	}
	var data kickData
	if err := json.Unmarshal(raw, &data); err != nil || data.PlayerID == "" {
		c.enqueue(outbound{Type: "error", Data: errorPayload{Code: codeMalformed, Detail: "invalid kick payload"}})
		return
	}
	if _, err := h.engine.Kick(c.sessionID, data.PlayerID); err != nil {
		c.reply(err)
	}
}

// hostAction runs a session progression mutation after the privilege
// check: the connection must be authenticated and flagged as host.
func (h *WSHandler) hostAction(c *client, action func() error) {
	if !h.requireHost(c) {
		return
	}
	if err := action(); err != nil {
		c.reply(err)
	}
}

func (h *WSHandler) requireHost(c *client) bool {
	if !c.authenticated || !c.isHost || c.sessionID == "" {
		c.reply(domain.ErrAuthRequired)
		return false
	}
	return true
}
