package chunkeval

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

//go:embed scripts/shim.py
var shimScript string

// shimRequest is one host-to-interpreter command.
type shimRequest struct {
	ID      string   `msgpack:"id"`
	Op      string   `msgpack:"op"`
	Code    string   `msgpack:"code,omitempty"`
	Name    string   `msgpack:"name,omitempty"`
	Methods []string `msgpack:"methods,omitempty"`
}

// shimFrame is one interpreter-to-host message: a request result, an error, a
// stdout flush, or a callback into a bound host value.
type shimFrame struct {
	Kind  string `msgpack:"kind"`
	ID    string `msgpack:"id,omitempty"`
	Value string `msgpack:"value,omitempty"`
	Error string `msgpack:"error,omitempty"`
	Name  string `msgpack:"name,omitempty"`
	Args  []any  `msgpack:"args,omitempty"`
}

// shimReturn answers a callback frame.
type shimReturn struct {
	Kind  string `msgpack:"kind"`
	ID    string `msgpack:"id"`
	Value any    `msgpack:"value,omitempty"`
	Error string `msgpack:"error,omitempty"`
}

// RuntimeOptions configures NewPythonRuntime.
type RuntimeOptions struct {
	// Output receives interpreter stdout/stderr as it is produced. Required.
	Output OutputFunc

	// Env adds environment variables to the interpreter process.
	Env map[string]string

	// Logger receives runtime diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// PythonRuntime implements Runtime over a Python subprocess running an
// embedded shim. The shim speaks length-prefixed msgpack frames on stdin and
// stdout: requests flow down, results, stdout flushes and bridge callbacks
// flow up.
//
// PythonRuntime is safe for concurrent use; requests are serialized because
// the interpreter executes at most one at a time.
type PythonRuntime struct {
	env       *Environment
	cmd       *exec.Cmd
	transport *frameTransport
	ser       Serializer
	out       OutputFunc
	log       zerolog.Logger

	// reqMu serializes requests so the shim sees one at a time.
	reqMu sync.Mutex

	// mu protects pending, bindings and closed.
	mu       sync.Mutex
	pending  map[string]chan shimFrame
	bindings map[string]any
	closed   bool

	// done is closed when the reader loop exits; readErr is valid after.
	done    chan struct{}
	readErr error
}

// NewPythonRuntime starts the interpreter subprocess and waits for the shim's
// ready handshake. The shim needs the msgpack package in the environment; it
// is installed on first use if absent.
func NewPythonRuntime(ctx context.Context, env *Environment, opts RuntimeOptions) (*PythonRuntime, error) {
	if opts.Output == nil {
		return nil, fmt.Errorf("chunkeval: RuntimeOptions.Output is required")
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	// The shim's own transport dependency is resolved the same way chunk
	// imports are: probe, then install if missing.
	ok, err := env.importable(ctx, "msgpack")
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := env.pipInstall(ctx, []string{"msgpack"}); err != nil {
			return nil, fmt.Errorf("installing shim dependency: %w", err)
		}
	}

	cmd := exec.Command(env.PythonPath, "-u", "-c", shimScript)
	cmd.Env = os.Environ()
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	configureProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	rt := &PythonRuntime{
		env:       env,
		cmd:       cmd,
		transport: newFrameTransport(stdout, stdin),
		ser:       msgpackSerializer{},
		out:       opts.Output,
		log:       log,
		pending:   make(map[string]chan shimFrame),
		bindings:  make(map[string]any),
		done:      make(chan struct{}),
	}

	// The shim redirects its own stdout; anything on stderr is interpreter
	// startup noise worth keeping in the logs.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			rt.log.Debug().Str("stream", "stderr").Msg(scanner.Text())
		}
	}()

	ready := make(chan shimFrame, 1)
	rt.mu.Lock()
	rt.pending["ready"] = ready
	rt.mu.Unlock()

	go rt.readLoop()

	select {
	case frame, ok := <-ready:
		if !ok {
			rt.kill()
			return nil, fmt.Errorf("interpreter exited during startup: %v", rt.readErr)
		}
		rt.log.Debug().Str("python", frame.Value).Msg("interpreter ready")
	case <-ctx.Done():
		rt.kill()
		return nil, ctx.Err()
	}

	return rt, nil
}

// Execute implements Runtime. Stdout produced by the source is forwarded to
// the output sink as it arrives; the return value is the final expression's
// repr, or "".
func (rt *PythonRuntime) Execute(ctx context.Context, source string) (string, error) {
	frame, err := rt.request(ctx, shimRequest{Op: "exec", Code: source})
	if err != nil {
		return "", err
	}
	return frame.Value, nil
}

// Importable implements Runtime using a side-effect-free find_spec probe
// inside the live interpreter.
func (rt *PythonRuntime) Importable(ctx context.Context, root string) (bool, error) {
	frame, err := rt.request(ctx, shimRequest{Op: "probe", Name: root})
	if err != nil {
		return false, err
	}
	return frame.Value == "y", nil
}

// Install implements Runtime with a single batched pip invocation.
func (rt *PythonRuntime) Install(ctx context.Context, roots []string) error {
	return rt.env.pipInstall(ctx, roots)
}

// Bind implements Runtime. The value is retained on the Go side; the
// interpreter receives a proxy object under the given name whose method calls
// round-trip back here. BridgeSurface and TensorRuntime values expose their
// three operations; anything else binds as an opaque handle.
func (rt *PythonRuntime) Bind(ctx context.Context, name string, value any) error {
	var methods []string
	switch value.(type) {
	case BridgeSurface, *BridgeSurface, TensorRuntime:
		methods = []string{"data", "from_data", "new_list"}
	}

	rt.mu.Lock()
	rt.bindings[name] = value
	rt.mu.Unlock()

	_, err := rt.request(ctx, shimRequest{Op: "bind", Name: name, Methods: methods})
	if err != nil {
		rt.mu.Lock()
		delete(rt.bindings, name)
		rt.mu.Unlock()
	}
	return err
}

// Close shuts the interpreter down: a graceful exit request first, then a
// process-group kill if the shim does not leave within five seconds.
func (rt *PythonRuntime) Close() error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	rt.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = rt.request(ctx, shimRequest{Op: "exit"})

	waited := make(chan error, 1)
	go func() { waited <- rt.cmd.Wait() }()

	select {
	case err := <-waited:
		return err
	case <-time.After(5 * time.Second):
		rt.kill()
		<-waited
		return fmt.Errorf("interpreter did not exit, killed")
	}
}

// request sends one command and waits for its result. Requests are serialized;
// the interpreter runs one at a time.
func (rt *PythonRuntime) request(ctx context.Context, req shimRequest) (shimFrame, error) {
	rt.reqMu.Lock()
	defer rt.reqMu.Unlock()

	req.ID = uuid.NewString()
	reply := make(chan shimFrame, 1)

	rt.mu.Lock()
	rt.pending[req.ID] = reply
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		delete(rt.pending, req.ID)
		rt.mu.Unlock()
	}()

	data, err := rt.ser.Marshal(req)
	if err != nil {
		return shimFrame{}, err
	}
	if err := rt.transport.Send(data); err != nil {
		return shimFrame{}, err
	}

	select {
	case frame, ok := <-reply:
		if !ok {
			return shimFrame{}, fmt.Errorf("interpreter exited: %v", rt.readErr)
		}
		if frame.Kind == "error" {
			ex, jerr := newExceptionFromJSON([]byte(frame.Error))
			if jerr != nil {
				return shimFrame{}, fmt.Errorf("undecodable interpreter error: %v", jerr)
			}
			return shimFrame{}, ex
		}
		return frame, nil
	case <-ctx.Done():
		return shimFrame{}, ctx.Err()
	case <-rt.done:
		return shimFrame{}, fmt.Errorf("interpreter exited: %v", rt.readErr)
	}
}

// readLoop is the single reader of the interpreter pipe. It routes results to
// waiting requests, forwards stdout flushes, and serves bridge callbacks.
func (rt *PythonRuntime) readLoop() {
	defer func() {
		rt.mu.Lock()
		for _, ch := range rt.pending {
			close(ch)
		}
		rt.pending = make(map[string]chan shimFrame)
		rt.mu.Unlock()
		close(rt.done)
	}()

	for {
		data, err := rt.transport.Receive()
		if err != nil {
			if err != io.EOF {
				rt.readErr = err
			}
			return
		}
		var frame shimFrame
		if err := rt.ser.Unmarshal(data, &frame); err != nil {
			rt.readErr = fmt.Errorf("undecodable frame: %v", err)
			return
		}

		switch frame.Kind {
		case "stdout":
			rt.out(frame.Value)
		case "ready":
			rt.deliver("ready", frame)
		case "result", "error":
			rt.deliver(frame.ID, frame)
		case "call":
			rt.serveCallback(frame)
		default:
			rt.log.Warn().Str("kind", frame.Kind).Msg("unknown frame from interpreter")
		}
	}
}

func (rt *PythonRuntime) deliver(id string, frame shimFrame) {
	rt.mu.Lock()
	ch, ok := rt.pending[id]
	rt.mu.Unlock()
	if ok {
		ch <- frame
	} else {
		rt.log.Warn().Str("id", id).Msg("reply for unknown request")
	}
}

// serveCallback invokes a bound host value on the interpreter's behalf. The
// shim blocks on the return frame, so the reply is sent inline.
func (rt *PythonRuntime) serveCallback(frame shimFrame) {
	value, err := rt.dispatch(frame.Name, frame.Args)
	ret := shimReturn{Kind: "return", ID: frame.ID, Value: value}
	if err != nil {
		ret.Error = err.Error()
	}
	data, merr := rt.ser.Marshal(ret)
	if merr != nil {
		data, _ = rt.ser.Marshal(shimReturn{Kind: "return", ID: frame.ID, Error: merr.Error()})
	}
	if serr := rt.transport.Send(data); serr != nil {
		rt.log.Warn().Err(serr).Msg("failed to answer interpreter callback")
	}
}

// dispatch resolves "binding.method" against the bound host values.
func (rt *PythonRuntime) dispatch(target string, args []any) (any, error) {
	dot := strings.LastIndex(target, ".")
	if dot < 0 {
		return nil, fmt.Errorf("malformed callback target %q", target)
	}
	name, method := target[:dot], target[dot+1:]

	rt.mu.Lock()
	value, ok := rt.bindings[name]
	rt.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no binding named %q", name)
	}

	switch v := value.(type) {
	case BridgeSurface:
		return callSurface(v, method, args)
	case *BridgeSurface:
		return callSurface(*v, method, args)
	case TensorRuntime:
		return callSurface(BridgeSurface{DataOf: v.DataOf, FromData: v.FromData, NewList: v.NewList}, method, args)
	}
	return nil, fmt.Errorf("binding %q is opaque, %q is not callable", name, method)
}

func callSurface(s BridgeSurface, method string, args []any) (any, error) {
	switch method {
	case "data":
		if len(args) != 1 {
			return nil, fmt.Errorf("data takes 1 argument, got %d", len(args))
		}
		return s.DataOf(args[0])
	case "from_data":
		if len(args) != 2 {
			return nil, fmt.Errorf("from_data takes 2 arguments, got %d", len(args))
		}
		requiresGrad, ok := args[1].(bool)
		if !ok {
			return nil, fmt.Errorf("from_data second argument must be a bool")
		}
		return s.FromData(args[0], requiresGrad)
	case "new_list":
		return s.NewList(args)
	}
	return nil, fmt.Errorf("unknown surface method %q", method)
}

// kill forcefully terminates the interpreter process group.
func (rt *PythonRuntime) kill() {
	if rt.cmd.Process != nil {
		_ = killProcess(rt.cmd)
	}
}
