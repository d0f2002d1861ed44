package events

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newStreamServer(t *testing.T, keepAlive time.Duration) (*Bus, *httptest.Server) {
	t.Helper()
	bus := NewBus(nil)
	h := NewStreamHandler(bus, zerolog.Nop(), nil)
	h.keepAlive = keepAlive
	e := echo.New()
	e.GET("/events", h.SSE)
	e.GET("/ws", h.WebSocket(NewUpgrader(nil)))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return bus, srv
}

func waitSubscribers(t *testing.T, bus *Bus, channel string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount(channel) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers on %s, got %d", n, channel, bus.SubscriberCount(channel))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSE_StreamsDoctorEvents(t *testing.T) {
	bus, srv := newStreamServer(t, time.Minute)
	doctor := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?doctor_id="+doctor.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	channel := DoctorChannel(&doctor)
	waitSubscribers(t, bus, channel, 1)
	bus.Publish(channel, Event{Type: TypeCalled, PatientName: "Amina Benali", DoctorID: &doctor, DoctorName: "Dr Meziane", Position: 2})

	event, data := readFrame(t, bufio.NewReader(resp.Body))
	if event != TypeCalled {
		t.Fatalf("expected %s, got %s", TypeCalled, event)
	}
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.PatientName != "Amina Benali" || ev.Position != 2 || ev.Timestamp.IsZero() {
		t.Errorf("unexpected event %+v", ev)
	}

	cancel()
	waitSubscribers(t, bus, channel, 0)
}

func TestSSE_PingsWhenIdle(t *testing.T) {
	_, srv := newStreamServer(t, 20*time.Millisecond)
	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	event, data := readFrame(t, bufio.NewReader(resp.Body))
	if event != TypePing || data != "" {
		t.Errorf("expected empty ping, got %q %q", event, data)
	}
}

func TestSSE_InvalidDoctorID(t *testing.T) {
	_, srv := newStreamServer(t, time.Minute)
	resp, err := http.Get(srv.URL + "/events?doctor_id=nope")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("expected an error status for invalid doctor_id")
	}
}

func TestWebSocket_ReceivesEvents(t *testing.T) {
	bus, srv := newStreamServer(t, time.Minute)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	waitSubscribers(t, bus, AllChannel, 1)
	bus.Publish(AllChannel, Event{Type: TypeCheckedIn, PatientName: "Karim Haddad", Position: 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if got.Type != TypeCheckedIn || got.PatientName != "Karim Haddad" {
		t.Errorf("unexpected event %+v", got)
	}

	conn.Close()
	waitSubscribers(t, bus, AllChannel, 0)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	up := NewUpgrader([]string{"http://front.local"})
	ok := httptest.NewRequest(http.MethodGet, "/", nil)
	ok.Header.Set("Origin", "http://front.local")
	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Origin", "http://evil.local")
	if !up.CheckOrigin(ok) {
		t.Error("expected configured origin to pass")
	}
	if up.CheckOrigin(bad) {
		t.Error("expected unknown origin to be rejected")
	}
}
