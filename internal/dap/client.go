package dap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/go-dap"
)

var (
	// ErrTimeout is returned when the adapter does not answer in time
	ErrTimeout = errors.New("dap request timed out")

	// ErrClosed is returned once the connection to the adapter is gone
	ErrClosed = errors.New("dap connection closed")
)

// DefaultTimeout bounds a single request/response round-trip
const DefaultTimeout = 10 * time.Second

// EventHandler receives every event the adapter sends, on the read goroutine.
// It must not block on requests to the same client.
type EventHandler func(dap.EventMessage)

// Client provides a high-level API for DAP operations
type Client struct {
	transport *Transport
	log       *slog.Logger
	timeout   time.Duration

	// Response handling
	pendingRequests map[int]chan dap.Message
	mu              sync.Mutex

	// Event handling
	handlerMu    sync.RWMutex
	eventHandler EventHandler

	// Capabilities from initialize response
	capabilities dap.Capabilities

	// Initialization synchronization
	initialized     chan struct{}
	initializedOnce sync.Once

	// closed when the read loop exits
	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient creates a new DAP client with the given transport and starts
// reading from it. A nil logger uses slog.Default().
func NewClient(transport *Transport, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		transport:       transport,
		log:             log,
		timeout:         DefaultTimeout,
		pendingRequests: make(map[int]chan dap.Message),
		initialized:     make(chan struct{}),
		done:            make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// SetEventHandler sets the handler for DAP events
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handlerMu.Lock()
	c.eventHandler = handler
	c.handlerMu.Unlock()
}

// SetTimeout changes the per-request timeout
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.mu.Lock()
		c.timeout = d
		c.mu.Unlock()
	}
}

// Done is closed once the adapter connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readLoop continuously reads messages from the transport
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.done)

	consecutiveErrors := 0
	const maxConsecutiveErrors = 5

	for {
		msg, err := c.transport.Receive()
		if err != nil {
			if isClosedErr(err) {
				return
			}
			consecutiveErrors++
			c.log.Warn("DAP transport error", "attempt", consecutiveErrors, "max", maxConsecutiveErrors, "error", err)

			// A malformed message is survivable; a dead stream is not
			if consecutiveErrors >= maxConsecutiveErrors {
				c.log.Error("DAP transport: too many consecutive errors, stopping read loop")
				return
			}
			continue
		}

		consecutiveErrors = 0
		c.handleMessage(msg)
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}

// handleMessage routes incoming messages to the appropriate handler
func (c *Client) handleMessage(msg dap.Message) {
	switch m := msg.(type) {
	case dap.ResponseMessage:
		seq := m.GetResponse().RequestSeq
		c.mu.Lock()
		ch, ok := c.pendingRequests[seq]
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		if ok {
			ch <- msg
		} else {
			c.log.Debug("dropping response with no waiter", "requestSeq", seq, "command", m.GetResponse().Command)
		}

	case dap.EventMessage:
		if _, ok := m.(*dap.InitializedEvent); ok {
			c.initializedOnce.Do(func() {
				close(c.initialized)
			})
		}
		c.handlerMu.RLock()
		handler := c.eventHandler
		c.handlerMu.RUnlock()
		if handler != nil {
			handler(m)
		}

	default:
		// Reverse requests (runInTerminal, startDebugging) are not supported
		c.log.Debug("ignoring DAP message", "type", fmt.Sprintf("%T", msg))
	}
}

// register reserves a sequence number and a response slot for req
func (c *Client) register(req dap.RequestMessage) (int, chan dap.Message) {
	seq := c.transport.NextSeq()
	r := req.GetRequest()
	r.Seq = seq
	r.Type = "request"

	respCh := make(chan dap.Message, 1)
	c.mu.Lock()
	c.pendingRequests[seq] = respCh
	c.mu.Unlock()
	return seq, respCh
}

func (c *Client) forget(seq int) {
	c.mu.Lock()
	delete(c.pendingRequests, seq)
	c.mu.Unlock()
}

// sendRequest sends a request and waits for the response
func (c *Client) sendRequest(ctx context.Context, req dap.RequestMessage) (dap.Message, error) {
	seq, respCh := c.register(req)

	if err := c.transport.Send(req); err != nil {
		c.forget(seq)
		return nil, err
	}

	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()

	resp, err := c.await(ctx, respCh, timeout, req.GetRequest().Command)
	if err != nil {
		c.forget(seq)
	}
	return resp, err
}

func (c *Client) await(ctx context.Context, respCh chan dap.Message, timeout time.Duration, command string) (dap.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", command, ErrTimeout)
	case <-c.done:
		return nil, fmt.Errorf("%s: %w", command, ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call sends req and checks that the response has the expected type and
// reports success
func call[T dap.ResponseMessage](ctx context.Context, c *Client, req dap.RequestMessage) (T, error) {
	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return checkResponse[T](resp)
}

func checkResponse[T dap.ResponseMessage](resp dap.Message) (T, error) {
	var zero T
	typed, ok := resp.(T)
	if !ok {
		if er, isErr := resp.(*dap.ErrorResponse); isErr {
			return zero, fmt.Errorf("%s failed: %s", er.Command, er.Message)
		}
		return zero, fmt.Errorf("unexpected response type: %T", resp)
	}
	if r := typed.GetResponse(); !r.Success {
		return zero, fmt.Errorf("%s failed: %s", r.Command, r.Message)
	}
	return typed, nil
}

func newRequest(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}

// Initialize sends the initialize request
func (c *Client) Initialize(ctx context.Context, clientID, clientName string) (*dap.InitializeResponse, error) {
	req := &dap.InitializeRequest{
		Request: newRequest("initialize"),
		Arguments: dap.InitializeRequestArguments{
			ClientID:                     clientID,
			ClientName:                   clientName,
			AdapterID:                    "lodeb",
			Locale:                       "en-US",
			LinesStartAt1:                true,
			ColumnsStartAt1:              true,
			PathFormat:                   "path",
			SupportsVariableType:         true,
			SupportsVariablePaging:       true,
			SupportsRunInTerminalRequest: false,
		},
	}

	resp, err := call[*dap.InitializeResponse](ctx, c, req)
	if err != nil {
		return nil, err
	}

	c.capabilities = resp.Body
	return resp, nil
}

// WaitInitialized waits for the initialized event
func (c *Client) WaitInitialized(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.initialized:
		return nil
	case <-timer.C:
		return fmt.Errorf("initialized event: %w", ErrTimeout)
	case <-c.done:
		return fmt.Errorf("initialized event: %w", ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LaunchAsync sends a launch request without waiting for the response.
// Adapters differ on whether the response comes before or after
// configurationDone, so the caller collects it with WaitForLaunchResponse.
func (c *Client) LaunchAsync(args map[string]interface{}) (chan dap.Message, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal launch args: %w", err)
	}

	req := &dap.LaunchRequest{
		Request:   newRequest("launch"),
		Arguments: argsJSON,
	}

	seq, respCh := c.register(req)
	if err := c.transport.Send(req); err != nil {
		c.forget(seq)
		return nil, err
	}

	return respCh, nil
}

// WaitForLaunchResponse waits for the launch response on the channel
func (c *Client) WaitForLaunchResponse(ctx context.Context, respCh chan dap.Message, timeout time.Duration) (*dap.LaunchResponse, error) {
	resp, err := c.await(ctx, respCh, timeout, "launch")
	if err != nil {
		return nil, err
	}
	return checkResponse[*dap.LaunchResponse](resp)
}

// ConfigurationDone signals that configuration is complete
func (c *Client) ConfigurationDone(ctx context.Context) error {
	req := &dap.ConfigurationDoneRequest{Request: newRequest("configurationDone")}
	_, err := call[*dap.ConfigurationDoneResponse](ctx, c, req)
	return err
}

// Terminate asks the adapter to end the debuggee gracefully
func (c *Client) Terminate(ctx context.Context) error {
	req := &dap.TerminateRequest{Request: newRequest("terminate")}
	_, err := call[*dap.TerminateResponse](ctx, c, req)
	return err
}

// Disconnect ends the debug session
func (c *Client) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	req := &dap.DisconnectRequest{
		Request: newRequest("disconnect"),
		Arguments: &dap.DisconnectArguments{
			TerminateDebuggee: terminateDebuggee,
		},
	}
	_, err := call[*dap.DisconnectResponse](ctx, c, req)
	return err
}

// Threads gets all threads
func (c *Client) Threads(ctx context.Context) ([]dap.Thread, error) {
	req := &dap.ThreadsRequest{Request: newRequest("threads")}
	resp, err := call[*dap.ThreadsResponse](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return resp.Body.Threads, nil
}

// StackTrace gets the stack trace for a thread
func (c *Client) StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]dap.StackFrame, error) {
	req := &dap.StackTraceRequest{
		Request: newRequest("stackTrace"),
		Arguments: dap.StackTraceArguments{
			ThreadId:   threadID,
			StartFrame: startFrame,
			Levels:     levels,
		},
	}
	resp, err := call[*dap.StackTraceResponse](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return resp.Body.StackFrames, nil
}

// Scopes gets the scopes for a stack frame
func (c *Client) Scopes(ctx context.Context, frameID int) ([]dap.Scope, error) {
	req := &dap.ScopesRequest{
		Request:   newRequest("scopes"),
		Arguments: dap.ScopesArguments{FrameId: frameID},
	}
	resp, err := call[*dap.ScopesResponse](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return resp.Body.Scopes, nil
}

// Variables gets the variables behind a reference
func (c *Client) Variables(ctx context.Context, variablesRef int) ([]dap.Variable, error) {
	req := &dap.VariablesRequest{
		Request:   newRequest("variables"),
		Arguments: dap.VariablesArguments{VariablesReference: variablesRef},
	}
	resp, err := call[*dap.VariablesResponse](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return resp.Body.Variables, nil
}

// SetBreakpoints replaces the breakpoints of one source file.
// The adapter answers with one entry per requested line, in order.
func (c *Client) SetBreakpoints(ctx context.Context, path string, lines []int) ([]dap.Breakpoint, error) {
	bps := make([]dap.SourceBreakpoint, len(lines))
	for i, line := range lines {
		bps[i] = dap.SourceBreakpoint{Line: line}
	}

	req := &dap.SetBreakpointsRequest{
		Request: newRequest("setBreakpoints"),
		Arguments: dap.SetBreakpointsArguments{
			Source:      dap.Source{Path: path},
			Breakpoints: bps,
		},
	}
	resp, err := call[*dap.SetBreakpointsResponse](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return resp.Body.Breakpoints, nil
}

// Continue resumes execution
func (c *Client) Continue(ctx context.Context, threadID int) error {
	req := &dap.ContinueRequest{
		Request:   newRequest("continue"),
		Arguments: dap.ContinueArguments{ThreadId: threadID},
	}
	_, err := call[*dap.ContinueResponse](ctx, c, req)
	return err
}

// Next steps over
func (c *Client) Next(ctx context.Context, threadID int) error {
	req := &dap.NextRequest{
		Request:   newRequest("next"),
		Arguments: dap.NextArguments{ThreadId: threadID},
	}
	_, err := call[*dap.NextResponse](ctx, c, req)
	return err
}

// StepIn steps into
func (c *Client) StepIn(ctx context.Context, threadID int) error {
	req := &dap.StepInRequest{
		Request:   newRequest("stepIn"),
		Arguments: dap.StepInArguments{ThreadId: threadID},
	}
	_, err := call[*dap.StepInResponse](ctx, c, req)
	return err
}

// Capabilities returns the capabilities from the initialize response
func (c *Client) Capabilities() dap.Capabilities {
	return c.capabilities
}

// Close shuts down the client. Closing the transport unblocks the reader.
func (c *Client) Close() error {
	err := c.transport.Close()
	c.wg.Wait()
	return err
}
