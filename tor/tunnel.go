package tor

import (
	"bufio"
	"context"
	"net"
	"sync"

	"golang.org/x/net/proxy"

	"github.com/sifir-io/sifir-sdk/metrics"
	"github.com/sifir-io/sifir-sdk/observer"
	"github.com/sifir-io/sifir-sdk/runtime"
)

// Tunnel is a single TCP stream dialed through the daemon's SOCKS5 proxy to
// a remote .onion (or clearnet) address. It mirrors the original SDK's
// tcp_stream: a background line reader feeds a DataObserver, while Send
// writes synchronously.
type Tunnel struct {
	conn net.Conn
	pool *runtime.Pool

	// DataObserver receives each line read from the remote peer on OnData,
	// and observer.ErrEOF on OnError when the peer closes the connection.
	DataObserver observer.Slot

	mtx    sync.Mutex
	closed bool
}

// DialTunnel connects to target through the SOCKS5 proxy at socksAddr
// (typically Daemon.SocksAddr) and starts a background reader that streams
// lines to tunnel.DataObserver once installed.
func DialTunnel(ctx context.Context, pool *runtime.Pool, socksAddr, target string) (*Tunnel, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, wrap(err)
	}

	contextDialer, ok := dialer.(proxy.ContextDialer)
	var conn net.Conn
	if ok {
		conn, err = contextDialer.DialContext(ctx, "tcp", target)
	} else {
		conn, err = dialer.Dial("tcp", target)
	}
	if err != nil {
		return nil, wrap(err)
	}

	t := &Tunnel{conn: conn, pool: pool}

	if err := pool.Go(context.Background(), t.readLoop); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return t, nil
}

// readLoop streams newline-delimited data from the remote peer to
// DataObserver until the connection closes or errors.
func (t *Tunnel) readLoop(ctx context.Context) {
	r := bufio.NewReader(t.conn)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			metrics.TunnelBytesTotal.WithLabelValues("in").Add(float64(len(line)))
			t.DataObserver.Emit(line)
		}
		if err != nil {
			t.mtx.Lock()
			closed := t.closed
			t.mtx.Unlock()
			if !closed {
				t.DataObserver.EmitEOF()
			}
			return
		}
	}
}

// Send writes data to the remote peer.
func (t *Tunnel) Send(data []byte) error {
	t.mtx.Lock()
	closed := t.closed
	t.mtx.Unlock()
	if closed {
		return ErrClosed
	}

	n, err := t.conn.Write(data)
	if err != nil {
		return wrap(err)
	}
	metrics.TunnelBytesTotal.WithLabelValues("out").Add(float64(n))
	return nil
}

// Close closes the underlying connection. It is safe to call more than
// once.
func (t *Tunnel) Close() error {
	t.mtx.Lock()
	if t.closed {
		t.mtx.Unlock()
		return nil
	}
	t.closed = true
	t.mtx.Unlock()
	return t.conn.Close()
}
