package tor

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/sifir-io/sifir-sdk/metrics"
	"github.com/sifir-io/sifir-sdk/observer"
	"github.com/sifir-io/sifir-sdk/runtime"
)

// fixedOKResponse is the single response the intake listener ever sends.
// The hidden service exists to observe inbound requests, not to answer
// them meaningfully, matching the original Rust SDK's hidden_service
// module which always replies "HTTP/1.1 200 OK\r\n\r\n".
const fixedOKResponse = "HTTP/1.1 200 OK\r\n\r\n"

// IntakeEvent is the JSON shape delivered to DataObserver for each request
// the hidden service receives.
type IntakeEvent struct {
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Headers    map[string][]string `json:"headers"`
	BodyBase64 string              `json:"body_base64"`
	RemoteAddr string              `json:"remote_addr"`
}

// Intake is a plain HTTP listener meant to sit behind a hidden service
// added via Daemon.AddOnionService: tor forwards onion-address traffic to
// this loopback listener's port.
type Intake struct {
	ln   net.Listener
	pool *runtime.Pool

	// DataObserver receives one JSON-encoded IntakeEvent per accepted
	// request on OnData, and observer.ErrEOF on OnError when the listener
	// is closed. Requests on a single Intake are delivered in the order
	// they were accepted.
	DataObserver observer.Slot

	mtx    sync.Mutex
	closed bool
}

// ListenIntake binds a loopback TCP listener on the given port (0 picks a
// free port) and starts an accept loop on pool. Callers typically pass the
// resulting Intake.Port() as the targetPort of Daemon.AddOnionService.
func ListenIntake(pool *runtime.Pool, port int) (*Intake, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, wrap(err)
	}

	in := &Intake{ln: ln, pool: pool}
	if err := pool.Go(context.Background(), in.acceptLoop); err != nil {
		_ = ln.Close()
		return nil, err
	}
	return in, nil
}

// Port returns the bound TCP port.
func (in *Intake) Port() int {
	return in.ln.Addr().(*net.TCPAddr).Port
}

func (in *Intake) acceptLoop(ctx context.Context) {
	for {
		conn, err := in.ln.Accept()
		if err != nil {
			in.mtx.Lock()
			closed := in.closed
			in.mtx.Unlock()
			if !closed {
				in.DataObserver.EmitError(wrap(err))
			}
			in.DataObserver.EmitEOF()
			return
		}

		// Handled inline, not via in.pool.Go: connections on a single
		// intake are processed sequentially so request order is
		// preserved for the observer. Only the accept loop itself runs
		// on the shared pool; other intakes still proceed concurrently.
		in.handleConn(conn)
	}
}

func (in *Intake) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		in.DataObserver.EmitError(wrap(err))
		return
	}
	defer req.Body.Close()

	body, err := io.ReadAll(io.LimitReader(req.Body, 16<<20))
	if err != nil {
		in.DataObserver.EmitError(wrap(err))
		return
	}

	event := IntakeEvent{
		Method:     req.Method,
		Path:       req.URL.Path,
		Headers:    map[string][]string(req.Header),
		BodyBase64: base64.StdEncoding.EncodeToString(body),
		RemoteAddr: conn.RemoteAddr().String(),
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		in.DataObserver.EmitError(wrap(err))
		return
	}

	metrics.HiddenServiceRequestsTotal.Inc()
	in.DataObserver.Emit(string(encoded))

	_, _ = conn.Write([]byte(fixedOKResponse))
}

// Close shuts down the listener. Safe to call more than once.
func (in *Intake) Close() error {
	in.mtx.Lock()
	if in.closed {
		in.mtx.Unlock()
		return nil
	}
	in.closed = true
	in.mtx.Unlock()
	return in.ln.Close()
}
