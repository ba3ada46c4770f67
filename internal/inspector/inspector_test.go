package inspector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/glit/internal/config"
	"github.com/conneroisu/glit/internal/scenario"
)

func sampleFrame(step int, passed bool) scenario.Frame {
	f := scenario.Frame{
		ID:       uuid.NewString(),
		Scenario: "demo",
		Step:     step,
		Target:   "main",
		Markup:   "<p>Hello, world!</p>",
		Mutations: []scenario.Mutation{
			{Type: "childList", Target: "<div>"},
			{Type: "characterData", Target: "#text", OldValue: "x"},
		},
		Passed:   passed,
		Duration: time.Millisecond,
	}
	if !passed {
		f.Error = "content policy rejected the write"
		f.Code = "POLICY_REJECTED"
	}
	return f
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(config.InspectorConfig{
		Host:           "127.0.0.1",
		Port:           0,
		AllowedOrigins: []string{"http://localhost:7357"},
	}, "glit inspector", nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()
	m.Observe(sampleFrame(0, true))
	m.Observe(sampleFrame(1, false))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("demo", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("demo", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("POLICY_REJECTED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("childList")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("characterData")))

	count, err := testutil.GatherAndCount(m.Registry(), "glit_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPageEscapesFrames(t *testing.T) {
	f := sampleFrame(3, false)
	f.Markup = `<img src=x onerror="alert(1)">`

	var buf bytes.Buffer
	err := Page(PageData{Title: "t<i>", Session: "s1", Frames: []scenario.Frame{f}}).
		Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>t&lt;i&gt;</title>")
	assert.Contains(t, out, "&lt;img src=x onerror=&#34;alert(1)&#34;&gt;")
	assert.NotContains(t, out, `<img src=x`)
	assert.Contains(t, out, `class="fail"`)
	assert.Contains(t, out, "POLICY_REJECTED")
	assert.Contains(t, out, `data-frame="`+f.ID+`"`)
}

func TestHubHistoryIsBounded(t *testing.T) {
	h := NewHub("s", nil, nil)
	for i := 0; i < historySize+10; i++ {
		h.Publish(sampleFrame(i, true))
	}
	history := h.History()
	require.Len(t, history, historySize)
	assert.Equal(t, 10, history[0].Step)
	assert.Equal(t, historySize+9, history[len(history)-1].Step)
}

func TestHubDeliversBackloggedFrameOnce(t *testing.T) {
	h := NewHub("s", nil, nil)
	frame := sampleFrame(0, true)
	// The frame is in the history and still queued for broadcast when the
	// client registers.
	h.Publish(frame)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &client{send: make(chan []byte, sendBuffer)}
	h.register <- c
	require.Eventually(t, func() bool { return len(h.broadcast) == 0 }, time.Second, time.Millisecond)
	// Run handles one case at a time, so this returns after the broadcast.
	other := &client{send: make(chan []byte, sendBuffer)}
	h.register <- other

	var frames []string
	for len(c.send) > 0 {
		var msg Message
		require.NoError(t, json.Unmarshal(<-c.send, &msg))
		if msg.Type == MessageFrame {
			frames = append(frames, msg.Frame.ID)
		}
	}
	assert.Equal(t, []string{frame.ID}, frames)

	h.unregister <- c
	h.unregister <- other
	require.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestServerRoutes(t *testing.T) {
	s, srv := testServer(t)
	s.FrameHandler()(sampleFrame(0, true))

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "glit inspector")
	assert.Contains(t, body, s.Session())
	assert.Contains(t, body, "&lt;p&gt;Hello, world!&lt;/p&gt;")

	code, body = get("/frames")
	assert.Equal(t, http.StatusOK, code)
	var frames []scenario.Frame
	require.NoError(t, json.Unmarshal([]byte(body), &frames))
	require.Len(t, frames, 1)
	assert.Equal(t, "demo", frames[0].Scenario)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `glit_steps_total{outcome="passed",scenario="demo"} 1`)

	code, _ = get("/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPageSecurityHeaders(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	csp := resp.Header.Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'none'")
	assert.Contains(t, csp, "script-src "+inlineHash(pageJS))
	assert.Contains(t, csp, "style-src "+inlineHash(pageCSS))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/frames", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:7357")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "http://localhost:7357", resp2.Header.Get("Access-Control-Allow-Origin"))
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketStreamsFrames(t *testing.T) {
	s, srv := testServer(t)
	backlog := sampleFrame(0, true)
	s.FrameHandler()(backlog)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	hello := readMessage(t, ctx, conn)
	assert.Equal(t, MessageHello, hello.Type)
	assert.Equal(t, s.Session(), hello.Session)

	replayed := readMessage(t, ctx, conn)
	require.Equal(t, MessageFrame, replayed.Type)
	require.NotNil(t, replayed.Frame)
	assert.Equal(t, backlog.ID, replayed.Frame.ID)

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	live := sampleFrame(1, false)
	s.FrameHandler()(live)
	msg := readMessage(t, ctx, conn)
	require.NotNil(t, msg.Frame)
	assert.Equal(t, live.ID, msg.Frame.ID)
	assert.Equal(t, "POLICY_REJECTED", msg.Frame.Code)

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return s.Hub().Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, srv := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws",
		&websocket.DialOptions{HTTPHeader: header})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:7357")
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws",
		&websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:7357", "https://dev.local", "::bad", "no-scheme"})
	assert.Equal(t, []string{"localhost:7357", "dev.local"}, got)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := New(config.InspectorConfig{Host: "127.0.0.1"}, "glit", nil)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/frames")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
