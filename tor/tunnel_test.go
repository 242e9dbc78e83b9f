package tor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sifir-io/sifir-sdk/observer"
	"github.com/sifir-io/sifir-sdk/runtime"
)

func TestTunnelStreamsLinesToObserver(t *testing.T) {
	client, server := net.Pipe()
	pool := runtime.NewSized(2)
	defer pool.Shutdown()

	tun := &Tunnel{conn: client, pool: pool}

	lines := make(chan string, 4)
	errs := make(chan error, 1)
	tun.DataObserver.Set(observer.FuncObserver{
		Data:  func(d string) { lines <- d },
		Error: func(e error) { errs <- e },
	})

	require.NoError(t, pool.Go(context.Background(), tun.readLoop))

	go func() {
		server.Write([]byte("first\n"))
		server.Write([]byte("second\n"))
		server.Close()
	}()

	require.Equal(t, "first\n", recvLine(t, lines))
	require.Equal(t, "second\n", recvLine(t, lines))
	require.True(t, errors.Is(recvErr(t, errs), observer.ErrEOF))
}

func TestTunnelSendWritesToConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tun := &Tunnel{conn: client}

	go func() {
		buf := make([]byte, 5)
		server.Read(buf)
	}()

	require.NoError(t, tun.Send([]byte("hello")))
}

func TestTunnelCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tun := &Tunnel{conn: client}
	require.NoError(t, tun.Close())
	require.NoError(t, tun.Close())
}

func recvLine(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case l := <-ch:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func recvErr(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error")
		return nil
	}
}
