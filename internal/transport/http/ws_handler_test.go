package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/app"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/infra/memory"
)

func testBank(n int) []domain.GameQuestion {
	questions := make([]domain.GameQuestion, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.GameQuestion{
			ID:            fmt.Sprintf("q-%d", i),
			Prompt:        fmt.Sprintf("question %d", i),
			Choices:       []string{"a", "b", "c", "d"},
			CorrectChoice: 1,
		})
	}
	return questions
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Engine) {
	t.Helper()
	bank := memory.NewQuestionBank(memory.NewStaticBankLoader(testBank(4)), time.Minute)
	engine := app.NewEngine(memory.NewRegistry(), bank, memory.NewTicketStore(), nil, app.Options{})

	mux := nethttp.NewServeMux()
	NewSessionHandler(engine).Register(mux)
	wsHandler := NewWSHandler(engine, time.Minute)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		engine.Shutdown()
	})
	return srv, engine
}

func createGame(t *testing.T, srv *httptest.Server, settings domain.Settings) createSessionResponse {
	t.Helper()
	body, _ := json.Marshal(createSessionRequest{HostID: "teacher-1", Settings: settings})
	resp, err := nethttp.Post(srv.URL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("POST /api/sessions: status %d", resp.StatusCode)
	}
	var created createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if data != nil {
		msg["data"] = data
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

type wireMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// awaitType reads frames until one of the wanted type arrives, skipping
// unrelated broadcasts such as ticks and presence updates.
func awaitType(t *testing.T, conn *websocket.Conn, want string) wireMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 50; i++ {
		var msg wireMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
		if msg.Type == "error" {
			t.Fatalf("waiting for %q, got error frame: %s", want, msg.Data)
		}
	}
	t.Fatalf("never received %q", want)
	return wireMsg{}
}

func awaitError(t *testing.T, conn *websocket.Conn, wantCode string) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 50; i++ {
		var msg wireMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for error %s: %v", wantCode, err)
		}
		if msg.Type != "error" {
			continue
		}
		var payload errorPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatalf("decode error payload: %v", err)
		}
		if payload.Code != wantCode {
			t.Fatalf("got error %s (%s), want %s", payload.Code, payload.Detail, wantCode)
		}
		return
	}
	t.Fatalf("never received error %s", wantCode)
}

func hostConnect(t *testing.T, srv *httptest.Server, ticket string) *websocket.Conn {
	t.Helper()
	conn := dialWS(t, srv)
	send(t, conn, "authenticate", authenticateData{Ticket: ticket})
	awaitType(t, conn, "authenticated")
	send(t, conn, "host-create", nil)
	awaitType(t, conn, "created")
	awaitType(t, conn, "players-sync")
	return conn
}

func TestFullGameOverWebsocket(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createGame(t, srv, domain.Settings{QuestionCount: 2, SecondsPerQuestion: 30})

	host := hostConnect(t, srv, created.Ticket)

	player := dialWS(t, srv)
	send(t, player, "join", joinData{Code: created.Code, Name: "Maya"})
	joinedMsg := awaitType(t, player, "joined")
	var joined joinedData
	if err := json.Unmarshal(joinedMsg.Data, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if joined.Player.Name != "Maya" || joined.Rejoined {
		t.Fatalf("unexpected join reply: %+v", joined)
	}
	awaitType(t, host, "player-joined")

	send(t, host, "start", nil)
	startedMsg := awaitType(t, host, "started")
	var started app.QuestionPayload
	if err := json.Unmarshal(startedMsg.Data, &started); err != nil {
		t.Fatalf("decode started: %v", err)
	}
	if started.QuestionIndex != 0 || started.TotalQuestions != 2 {
		t.Fatalf("unexpected started payload: %+v", started)
	}
	awaitType(t, player, "started")

	send(t, player, "submit-answer", answerData{QuestionID: started.Question.ID, Choice: 1, SecondsRemaining: 30})
	acceptedMsg := awaitType(t, player, "answer-accepted")
	var accepted answerAcceptedData
	if err := json.Unmarshal(acceptedMsg.Data, &accepted); err != nil {
		t.Fatalf("decode answer-accepted: %v", err)
	}
	if accepted.Points != 1000 {
		t.Fatalf("instant correct answer scored %d, want 1000", accepted.Points)
	}

	answeredMsg := awaitType(t, host, "player-answered")
	var answered app.AnsweredPayload
	if err := json.Unmarshal(answeredMsg.Data, &answered); err != nil {
		t.Fatalf("decode player-answered: %v", err)
	}
	if answered.AnsweredCount != 1 || answered.PlayerCount != 1 {
		t.Fatalf("unexpected answered payload: %+v", answered)
	}

	send(t, host, "reveal", nil)
	revealMsg := awaitType(t, player, "revealed")
	var reveal domain.RevealSummary
	if err := json.Unmarshal(revealMsg.Data, &reveal); err != nil {
		t.Fatalf("decode revealed: %v", err)
	}
	if reveal.CorrectChoice != 1 || len(reveal.Results) != 1 {
		t.Fatalf("unexpected reveal: %+v", reveal)
	}

	send(t, host, "advance", nil)
	awaitType(t, player, "advanced")

	send(t, host, "end", nil)
	endedMsg := awaitType(t, player, "ended")
	var ended app.EndedPayload
	if err := json.Unmarshal(endedMsg.Data, &ended); err != nil {
		t.Fatalf("decode ended: %v", err)
	}
	if len(ended.Leaderboard.Individual) != 1 || ended.Leaderboard.Individual[0].Score != 1000 {
		t.Fatalf("unexpected final standings: %+v", ended.Leaderboard.Individual)
	}
}

func TestPlayerCannotDriveTheGame(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createGame(t, srv, domain.Settings{})

	player := dialWS(t, srv)
	send(t, player, "join", joinData{Code: created.Code, Name: "Maya"})
	awaitType(t, player, "joined")

	for _, action := range []string{"start", "reveal", "advance", "end"} {
		send(t, player, action, nil)
		awaitError(t, player, codeAuthRequired)
	}
}

func TestHostCreateRequiresTicket(t *testing.T) {
	srv, _ := newTestServer(t)
	createGame(t, srv, domain.Settings{})

	conn := dialWS(t, srv)
	send(t, conn, "host-create", nil)
	awaitError(t, conn, codeAuthRequired)

	send(t, conn, "authenticate", authenticateData{Ticket: "not-a-ticket"})
	awaitError(t, conn, codeInvalidTicket)
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{{nope")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	awaitError(t, conn, codeMalformed)

	send(t, conn, "teleport", nil)
	awaitError(t, conn, codeUnknownType)
}

func TestKickClosesThePlayerConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createGame(t, srv, domain.Settings{})
	host := hostConnect(t, srv, created.Ticket)

	player := dialWS(t, srv)
	send(t, player, "join", joinData{Code: created.Code, Name: "Maya"})
	joinedMsg := awaitType(t, player, "joined")
	var joined joinedData
	if err := json.Unmarshal(joinedMsg.Data, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	awaitType(t, host, "player-joined")

	send(t, host, "kick", kickData{PlayerID: joined.Player.ID})

	// The connection is closed right after the kick broadcast, so the
	// frame itself may or may not arrive before the close does.
	_ = player.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 50; i++ {
		if _, _, err := player.ReadMessage(); err != nil {
			return
		}
	}
	t.Fatalf("kicked player's connection was not closed")
}

func TestReconnectMidGameSyncsCurrentQuestion(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createGame(t, srv, domain.Settings{QuestionCount: 1, SecondsPerQuestion: 30})
	host := hostConnect(t, srv, created.Ticket)

	player := dialWS(t, srv)
	send(t, player, "join", joinData{Code: created.Code, Name: "Maya"})
	awaitType(t, player, "joined")

	send(t, host, "start", nil)
	awaitType(t, player, "started")
	player.Close()

	back := dialWS(t, srv)
	send(t, back, "join", joinData{Code: created.Code, Name: "Maya"})
	joinedMsg := awaitType(t, back, "joined")
	var joined joinedData
	if err := json.Unmarshal(joinedMsg.Data, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if !joined.Rejoined {
		t.Fatalf("expected a rejoin")
	}
	if joined.Question == nil {
		t.Fatalf("mid-game rejoin should carry the open question")
	}
	if joined.SecondsRemaining <= 0 || joined.SecondsRemaining > 30 {
		t.Fatalf("implausible seconds remaining: %d", joined.SecondsRemaining)
	}
}

func TestMintTicketEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createGame(t, srv, domain.Settings{})

	body, _ := json.Marshal(mintTicketRequest{HostID: "teacher-1"})
	resp, err := nethttp.Post(srv.URL+"/api/sessions/"+created.SessionID+"/ticket", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST ticket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var minted mintTicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&minted); err != nil {
		t.Fatalf("decode ticket response: %v", err)
	}
	if minted.Ticket == "" || minted.Ticket == created.Ticket {
		t.Fatalf("expected a fresh ticket, got %q", minted.Ticket)
	}

	body, _ = json.Marshal(mintTicketRequest{HostID: "intruder"})
	resp, err = nethttp.Post(srv.URL+"/api/sessions/"+created.SessionID+"/ticket", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST ticket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("status %d for wrong host, want 401", resp.StatusCode)
	}
}
