package tor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sifir-io/sifir-sdk/observer"
	"github.com/sifir-io/sifir-sdk/runtime"
)

func TestIntakeDeliversRequestAsEvent(t *testing.T) {
	pool := runtime.NewSized(4)
	defer pool.Shutdown()

	in, err := ListenIntake(pool, 0)
	require.NoError(t, err)
	defer in.Close()

	events := make(chan string, 1)
	in.DataObserver.Set(observer.FuncObserver{
		Data: func(d string) { events <- d },
	})

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(in.Port()))
	resp, err := http.Post("http://"+addr+"/hook", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case raw := <-events:
		var ev IntakeEvent
		require.NoError(t, json.Unmarshal([]byte(raw), &ev))
		require.Equal(t, "POST", ev.Method)
		require.Equal(t, "/hook", ev.Path)

		body, err := base64.StdEncoding.DecodeString(ev.BodyBase64)
		require.NoError(t, err)
		require.Equal(t, "hello", string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for intake event")
	}
}

func TestIntakeEmitsEOFOnClose(t *testing.T) {
	pool := runtime.NewSized(4)
	defer pool.Shutdown()

	in, err := ListenIntake(pool, 0)
	require.NoError(t, err)

	eof := make(chan struct{}, 1)
	in.DataObserver.Set(observer.FuncObserver{
		Error: func(err error) {
			if errors.Is(err, observer.ErrEOF) {
				eof <- struct{}{}
			}
		},
	})

	require.NoError(t, in.Close())

	select {
	case <-eof:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for EOF")
	}
}
