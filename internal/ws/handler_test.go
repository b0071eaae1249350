package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
	"github.com/hubenschmidt/support-crew/gateway/internal/present"
)

type scriptedRunner struct {
	err error
}

func (s scriptedRunner) Run(_ context.Context, inq pipeline.Inquiry, onEvent pipeline.EventCallback) (*pipeline.FinalResponse, error) {
	if err := inq.Validate(); err != nil {
		return nil, err
	}
	onEvent(pipeline.Event{Type: "run_started", RunID: "r1"})
	onEvent(pipeline.Event{Type: "stage_started", RunID: "r1", Stage: pipeline.StageResolution})
	if s.err != nil {
		onEvent(pipeline.Event{Type: "stage_failed", RunID: "r1", Stage: pipeline.StageResolution})
		return nil, s.err
	}
	onEvent(pipeline.Event{Type: "run_done", RunID: "r1"})
	return &pipeline.FinalResponse{RunID: "r1", Text: "final for " + inq.Customer}, nil
}

type frame struct {
	Type     string       `json:"type"`
	Stage    string       `json:"stage"`
	View     present.View `json:"view"`
	Error    string       `json:"error"`
	Problems []string     `json:"problems"`
}

func dial(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilTerminal collects frames until a result or error frame arrives.
func readUntilTerminal(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type == "result" || f.Type == "error" {
			return frames
		}
	}
}

func TestSession_Success(t *testing.T) {
	conn := dial(t, NewHandler(HandlerConfig{Runner: scriptedRunner{}, MaxConcurrent: 1}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"customer":"Acme","person":"Jo","inquiry":"How?"}`)))
	frames := readUntilTerminal(t, conn)

	var types []string
	for _, f := range frames {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{"run_started", "stage_started", "run_done", "result"}, types)
	last := frames[len(frames)-1]
	assert.Equal(t, present.KindSuccess, last.View.Kind)
	assert.Equal(t, "final for Acme", last.View.Body)
}

func TestSession_MultipleInquiries(t *testing.T) {
	conn := dial(t, NewHandler(HandlerConfig{Runner: scriptedRunner{}}))

	for _, customer := range []string{"Acme", "Globex"} {
		require.NoError(t, conn.WriteJSON(map[string]string{"customer": customer, "inquiry": "q"}))
		frames := readUntilTerminal(t, conn)
		assert.Equal(t, "final for "+customer, frames[len(frames)-1].View.Body)
	}
}

func TestSession_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		runner  scriptedRunner
		payload string
		kind    present.Kind
	}{
		{"warning", scriptedRunner{}, `{"customer":"","inquiry":"q"}`, present.KindWarning},
		{"failure", scriptedRunner{err: &pipeline.GenerationError{Stage: pipeline.StageResolution, Err: errors.New("quota")}}, `{"customer":"Acme","inquiry":"q"}`, present.KindFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dial(t, NewHandler(HandlerConfig{Runner: tt.runner}))
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			frames := readUntilTerminal(t, conn)
			last := frames[len(frames)-1]
			assert.Equal(t, "result", last.Type)
			assert.Equal(t, tt.kind, last.View.Kind)
		})
	}
}

func TestSession_MalformedKeepsSessionOpen(t *testing.T) {
	conn := dial(t, NewHandler(HandlerConfig{Runner: scriptedRunner{}}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"customer":1}`)))
	frames := readUntilTerminal(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, "malformed inquiry", frames[0].Error)
	assert.NotEmpty(t, frames[0].Problems)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2}))
	frames = readUntilTerminal(t, conn)
	assert.Equal(t, "error", frames[0].Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"customer":"Acme","inquiry":"q"}`)))
	frames = readUntilTerminal(t, conn)
	assert.Equal(t, present.KindSuccess, frames[len(frames)-1].View.Kind)
}

func TestServeHTTP_AtCapacity(t *testing.T) {
	h := NewHandler(HandlerConfig{Runner: scriptedRunner{}, MaxConcurrent: 1})
	h.sem <- struct{}{}
	defer func() { <-h.sem }()

	srv := httptest.NewServer(h)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
