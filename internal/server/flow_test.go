package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

func newFlowServer(t *testing.T, aiURL string) (*clockwork.FakeClock, *httptest.Server) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := newTestServer(t, clock, aiURL)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return clock, ts
}

func readPreCountdown(t *testing.T, conn *websocket.Conn) preCountdownPayload {
	t.Helper()
	var payload preCountdownPayload
	if err := json.Unmarshal(readEvent(t, conn, "round:precountdown"), &payload); err != nil {
		t.Fatalf("decode precountdown payload: %v", err)
	}
	return payload
}

func readRoundResult(t *testing.T, conn *websocket.Conn) RoundResult {
	t.Helper()
	var result RoundResult
	if err := json.Unmarshal(readEvent(t, conn, "round-result"), &result); err != nil {
		t.Fatalf("decode round result: %v", err)
	}
	return result
}

// The canonical round: three players, two submit in time, the deadline fires
// and the scorer decides between the two received drawings.
func TestRoundCompletesAtDeadline(t *testing.T) {
	scorer := constantScorer(t, 50)
	clock, ts := newFlowServer(t, scorer.URL)

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	p2 := joinRoom(t, ts, code, "Alex")
	conn := dialRoom(t, ts, code, hostID)

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start",
		map[string]any{"player_id": hostID, "duration_seconds": 3})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start: status %d", resp.StatusCode)
	}

	for want := 3; want >= 0; want-- {
		payload := readPreCountdown(t, conn)
		if payload.Count != want {
			t.Fatalf("precountdown tick = %d, want %d", payload.Count, want)
		}
		if payload.Prompt == "" || payload.Duration != 3 {
			t.Fatalf("precountdown payload: %+v", payload)
		}
		if want > 0 {
			advanceRound(t, clock, 1)
		}
	}
	readEvent(t, conn, "round:start")

	drawing := testDrawing(t)
	for _, id := range []string{p1, p2} {
		resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/submissions",
			map[string]any{"player_id": id, "image_data": drawing})
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("submit %s: status %d", id, resp.StatusCode)
		}
	}

	// Two of three players submitted, so the round runs to its deadline.
	advanceRound(t, clock, 1)
	var countdown countdownPayload
	if err := json.Unmarshal(readEvent(t, conn, "round:countdown"), &countdown); err != nil {
		t.Fatalf("decode countdown: %v", err)
	}
	if countdown.TimeLeft != 2 {
		t.Fatalf("time_left = %d, want 2", countdown.TimeLeft)
	}
	advanceRound(t, clock, 2)
	readEvent(t, conn, "round:ended")

	result := readRoundResult(t, conn)
	if result.IsFallback {
		t.Fatalf("unexpected fallback: %+v", result)
	}
	if len(result.Scores) != 2 {
		t.Fatalf("scores = %d, want 2", len(result.Scores))
	}
	// Equal confidences, so the first submitted drawing wins.
	if result.WinnerIndex != 0 || result.WinnerID != p1 {
		t.Fatalf("winner = %d (%s), want 0 (%s)", result.WinnerIndex, result.WinnerID, p1)
	}
}

func TestRoundEndsEarlyWhenEveryoneSubmits(t *testing.T) {
	scorer := constantScorer(t, 50)
	clock, ts := newFlowServer(t, scorer.URL)

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	conn := dialRoom(t, ts, code, hostID)

	doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start",
		map[string]any{"player_id": hostID, "duration_seconds": 30})
	advanceRound(t, clock, 3)
	readEvent(t, conn, "round:start")

	drawing := testDrawing(t)
	for _, id := range []string{hostID, p1} {
		resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/submissions",
			map[string]any{"player_id": id, "image_data": drawing})
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("submit %s: status %d", id, resp.StatusCode)
		}
	}

	// No clock advance: the final submission pre-empts the deadline.
	readEvent(t, conn, "round:ended")
	result := readRoundResult(t, conn)
	if result.IsFallback || len(result.Scores) != 2 {
		t.Fatalf("result: %+v", result)
	}

	// The next round supersedes everything; a submission against it while
	// still counting down is rejected.
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/next-round", map[string]any{})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("next round: status %d", resp.StatusCode)
	}
	if payload := readPreCountdown(t, conn); payload.Count != 3 {
		t.Fatalf("fresh round precountdown = %d", payload.Count)
	}
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/submissions",
		map[string]any{"player_id": hostID, "image_data": drawing})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("submit during precountdown: status %d, want 409", resp.StatusCode)
	}
	if kind := decodeBody(t, resp)["kind"]; kind != "round_not_active" {
		t.Fatalf("error kind = %v", kind)
	}
}

func TestDeadlineWithNoSubmissionsProducesFallback(t *testing.T) {
	clock, ts := newFlowServer(t, "")

	code, hostID := createRoom(t, ts, "Dana")
	conn := dialRoom(t, ts, code, hostID)

	doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start",
		map[string]any{"player_id": hostID, "duration_seconds": 2})
	advanceRound(t, clock, 3)
	readEvent(t, conn, "round:start")
	advanceRound(t, clock, 2)
	readEvent(t, conn, "round:ended")

	result := readRoundResult(t, conn)
	if !result.IsFallback {
		t.Fatal("empty round must fall back")
	}
	if result.WinnerIndex != -1 || result.WinnerID != "" {
		t.Fatalf("empty round winner: %+v", result)
	}
	if len(result.Scores) != 0 {
		t.Fatalf("scores = %v, want empty", result.Scores)
	}
	if result.Error == "" {
		t.Fatal("fallback must explain itself")
	}
}

func TestScorerOutageStillProducesWinner(t *testing.T) {
	scorer := failingScorer(t)
	clock, ts := newFlowServer(t, scorer.URL)

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	conn := dialRoom(t, ts, code, hostID)

	doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start",
		map[string]any{"player_id": hostID, "duration_seconds": 30})
	advanceRound(t, clock, 3)
	readEvent(t, conn, "round:start")

	drawing := testDrawing(t)
	for _, id := range []string{hostID, p1} {
		doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/submissions",
			map[string]any{"player_id": id, "image_data": drawing})
	}
	readEvent(t, conn, "round:ended")

	result := readRoundResult(t, conn)
	if !result.IsFallback || result.Error == "" {
		t.Fatalf("expected explained fallback, got %+v", result)
	}
	if result.WinnerIndex < 0 || result.WinnerIndex >= 2 {
		t.Fatalf("fallback winner index %d out of range", result.WinnerIndex)
	}
	if result.Scores[result.WinnerIndex].Score != 1 {
		t.Fatalf("fallback winner score: %+v", result.Scores)
	}
}

func TestLastHoldOutLeavingTriggersJudging(t *testing.T) {
	scorer := constantScorer(t, 50)
	clock, ts := newFlowServer(t, scorer.URL)

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	p2 := joinRoom(t, ts, code, "Alex")
	conn := dialRoom(t, ts, code, hostID)

	doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/start",
		map[string]any{"player_id": hostID, "duration_seconds": 30})
	advanceRound(t, clock, 3)
	readEvent(t, conn, "round:start")

	drawing := testDrawing(t)
	for _, id := range []string{hostID, p1} {
		doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/submissions",
			map[string]any{"player_id": id, "image_data": drawing})
	}

	// The only player yet to submit leaves; the denominator shrinks and the
	// round completes without waiting out the clock.
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/leave",
		map[string]any{"player_id": p2})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("leave: status %d", resp.StatusCode)
	}
	readEvent(t, conn, "round:ended")
	result := readRoundResult(t, conn)
	if result.IsFallback || len(result.Scores) != 2 {
		t.Fatalf("result after hold-out left: %+v", result)
	}
}

func TestHostLeavingClosesRoom(t *testing.T) {
	_, ts := newFlowServer(t, "")

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	conn := dialRoom(t, ts, code, p1)

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/leave",
		map[string]any{"player_id": hostID})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("host leave: status %d", resp.StatusCode)
	}

	var payload roomClosedPayload
	if err := json.Unmarshal(readEvent(t, conn, "room-closed"), &payload); err != nil {
		t.Fatalf("decode room-closed: %v", err)
	}
	if payload.RoomCode != code {
		t.Fatalf("room-closed for %q, want %q", payload.RoomCode, code)
	}
	if resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+code, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("room lookup after close: status %d, want 404", resp.StatusCode)
	}
}

func TestHostDisconnectClosesRoom(t *testing.T) {
	_, ts := newFlowServer(t, "")

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	hostConn := dialRoom(t, ts, code, hostID)
	playerConn := dialRoom(t, ts, code, p1)

	_ = hostConn.Close()

	var payload roomClosedPayload
	if err := json.Unmarshal(readEvent(t, playerConn, "room-closed"), &payload); err != nil {
		t.Fatalf("decode room-closed: %v", err)
	}
	if payload.RoomCode != code {
		t.Fatalf("room-closed for %q, want %q", payload.RoomCode, code)
	}
}

func TestWebsocketDispatch(t *testing.T) {
	scorer := constantScorer(t, 50)
	clock, ts := newFlowServer(t, scorer.URL)

	code, hostID := createRoom(t, ts, "Dana")
	p1 := joinRoom(t, ts, code, "Riley")
	hostConn := dialRoom(t, ts, code, hostID)
	playerConn := dialRoom(t, ts, code, p1)

	// Non-host start attempt comes back as an error frame to the sender only.
	if err := playerConn.WriteJSON(clientMessage{Action: "start-game"}); err != nil {
		t.Fatalf("send start-game: %v", err)
	}
	var wsErr errorPayload
	if err := json.Unmarshal(readEvent(t, playerConn, "error"), &wsErr); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if wsErr.Kind != "unauthorized" {
		t.Fatalf("error kind = %q, want unauthorized", wsErr.Kind)
	}

	if err := hostConn.WriteJSON(clientMessage{Action: "start-game", DurationSeconds: 30}); err != nil {
		t.Fatalf("send start-game: %v", err)
	}
	advanceRound(t, clock, 3)
	readEvent(t, hostConn, "round:start")

	drawing := testDrawing(t)
	for _, conn := range []*websocket.Conn{hostConn, playerConn} {
		if err := conn.WriteJSON(clientMessage{Action: "submit-drawing", ImageData: drawing}); err != nil {
			t.Fatalf("send submit-drawing: %v", err)
		}
	}
	readEvent(t, hostConn, "round:ended")
	result := readRoundResult(t, hostConn)
	if result.IsFallback || len(result.Scores) != 2 {
		t.Fatalf("result: %+v", result)
	}
}
