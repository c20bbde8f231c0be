package dap

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/lodeb/internal/logging"
)

// newPipeClient connects a client to an in-memory fake adapter. The test
// plays the adapter by reading requests from r and writing replies to conn.
func newPipeClient(t *testing.T) (*Client, *bufio.Reader, net.Conn) {
	t.Helper()
	clientConn, adapterConn := net.Pipe()
	c := NewClient(NewTransport(clientConn), logging.Discard())
	t.Cleanup(func() {
		adapterConn.Close()
		c.Close()
	})
	return c, bufio.NewReader(adapterConn), adapterConn
}

func reply(req dap.RequestMessage, success bool, message string) dap.Response {
	r := req.GetRequest()
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		Command:         r.Command,
		RequestSeq:      r.Seq,
		Success:         success,
		Message:         message,
	}
}

func readRequest(t *testing.T, r *bufio.Reader) dap.Message {
	t.Helper()
	msg, err := dap.ReadProtocolMessage(r)
	require.NoError(t, err)
	return msg
}

func TestClient_InitializeAndInitializedEvent(t *testing.T) {
	c, r, conn := newPipeClient(t)

	events := make(chan dap.EventMessage, 4)
	c.SetEventHandler(func(e dap.EventMessage) { events <- e })

	errc := make(chan error, 1)
	go func() {
		_, err := c.Initialize(context.Background(), "lodeb", "lodeb")
		errc <- err
	}()

	req, ok := readRequest(t, r).(*dap.InitializeRequest)
	require.True(t, ok)
	require.Equal(t, "lodeb", req.Arguments.AdapterID)
	require.True(t, req.Arguments.LinesStartAt1)

	require.NoError(t, dap.WriteProtocolMessage(conn, &dap.InitializeResponse{
		Response: reply(req, true, ""),
		Body:     dap.Capabilities{SupportsTerminateRequest: true},
	}))
	require.NoError(t, <-errc)
	require.True(t, c.Capabilities().SupportsTerminateRequest)

	require.NoError(t, dap.WriteProtocolMessage(conn, &dap.InitializedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "initialized"},
	}))
	require.NoError(t, c.WaitInitialized(context.Background(), time.Second))
	require.IsType(t, &dap.InitializedEvent{}, <-events)
}

func TestClient_SetBreakpoints(t *testing.T) {
	c, r, conn := newPipeClient(t)

	type result struct {
		bps []dap.Breakpoint
		err error
	}
	done := make(chan result, 1)
	go func() {
		bps, err := c.SetBreakpoints(context.Background(), "/src/main.c", []int{10, 20})
		done <- result{bps, err}
	}()

	req, ok := readRequest(t, r).(*dap.SetBreakpointsRequest)
	require.True(t, ok)
	require.Equal(t, "/src/main.c", req.Arguments.Source.Path)
	require.Len(t, req.Arguments.Breakpoints, 2)
	require.Equal(t, 20, req.Arguments.Breakpoints[1].Line)

	require.NoError(t, dap.WriteProtocolMessage(conn, &dap.SetBreakpointsResponse{
		Response: reply(req, true, ""),
		Body: dap.SetBreakpointsResponseBody{Breakpoints: []dap.Breakpoint{
			{Verified: true, Line: 10},
			{Verified: false, Line: 20, Message: "no code"},
		}},
	}))

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.bps, 2)
	require.True(t, res.bps[0].Verified)
	require.False(t, res.bps[1].Verified)
}

func TestClient_FailedResponse(t *testing.T) {
	c, r, conn := newPipeClient(t)

	errc := make(chan error, 1)
	go func() { errc <- c.StepIn(context.Background(), 1) }()

	req, ok := readRequest(t, r).(*dap.StepInRequest)
	require.True(t, ok)
	require.Equal(t, 1, req.Arguments.ThreadId)

	require.NoError(t, dap.WriteProtocolMessage(conn, &dap.StepInResponse{
		Response: reply(req, false, "process exited"),
	}))

	err := <-errc
	require.Error(t, err)
	require.Contains(t, err.Error(), "stepIn failed: process exited")
}

func TestClient_StoppedEventDispatch(t *testing.T) {
	c, _, conn := newPipeClient(t)

	events := make(chan dap.EventMessage, 1)
	c.SetEventHandler(func(e dap.EventMessage) { events <- e })

	stopped := &dap.StoppedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "stopped"},
		Body:  dap.StoppedEventBody{Reason: "breakpoint", ThreadId: 7},
	}
	require.NoError(t, dap.WriteProtocolMessage(conn, stopped))

	select {
	case e := <-events:
		got, ok := e.(*dap.StoppedEvent)
		require.True(t, ok)
		require.Equal(t, "breakpoint", got.Body.Reason)
		require.Equal(t, 7, got.Body.ThreadId)
	case <-time.After(time.Second):
		t.Fatal("stopped event not dispatched")
	}
}

func TestClient_Timeout(t *testing.T) {
	c, r, _ := newPipeClient(t)
	c.SetTimeout(50 * time.Millisecond)

	errc := make(chan error, 1)
	go func() { errc <- c.Next(context.Background(), 1) }()

	_, ok := readRequest(t, r).(*dap.NextRequest)
	require.True(t, ok)

	err := <-errc
	require.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestClient_ConnectionClosed(t *testing.T) {
	c, r, conn := newPipeClient(t)

	errc := make(chan error, 1)
	go func() { errc <- c.Continue(context.Background(), 1) }()

	_, ok := readRequest(t, r).(*dap.ContinueRequest)
	require.True(t, ok)
	require.NoError(t, conn.Close())

	err := <-errc
	require.True(t, errors.Is(err, ErrClosed), "got %v", err)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after adapter went away")
	}
}
