package tor

import (
	"bufio"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"

	"github.com/go-errors/errors"
)

// controlSession speaks tor's text control protocol (control-spec.txt) over
// a single TCP connection. It is intentionally minimal: authenticate,
// GETINFO, ADD_ONION, TAKEOWNERSHIP — the handful of commands C3/C4 need.
type controlSession struct {
	mtx  sync.Mutex
	conn net.Conn
	tp   *textproto.Reader
	w    *bufio.Writer
}

func newControlSession(conn net.Conn) *controlSession {
	return &controlSession{
		conn: conn,
		tp:   textproto.NewReader(bufio.NewReader(conn)),
		w:    bufio.NewWriter(conn),
	}
}

// do sends a single control-protocol command and returns its response
// lines with the "250"/"250 OK" status stripped, or an error if the
// daemon replied with a non-2xx status.
func (s *controlSession) do(cmd string) ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, err := s.w.WriteString(cmd + "\r\n"); err != nil {
		return nil, wrap(err)
	}
	if err := s.w.Flush(); err != nil {
		return nil, wrap(err)
	}

	var lines []string
	for {
		line, err := s.tp.ReadLine()
		if err != nil {
			return nil, wrap(err)
		}
		if len(line) < 4 {
			return nil, errors.Errorf("tor control: malformed reply %q", line)
		}

		status, sep, rest := line[:3], line[3], line[4:]
		if !strings.HasPrefix(status, "2") {
			return nil, errors.Errorf("tor control: %s %s", status, rest)
		}

		lines = append(lines, rest)
		if sep == ' ' {
			// Final line of a (possibly multi-line) reply.
			return lines, nil
		}
		// sep == '-' or '+' means more lines follow.
	}
}

// authenticateCookie performs SAFECOOKIE-less plain cookie authentication:
// AUTHENTICATE <hex cookie bytes>.
func (s *controlSession) authenticateCookie(cookie []byte) error {
	cmd := "AUTHENTICATE " + hex.EncodeToString(cookie)
	if _, err := s.do(cmd); err != nil {
		return errors.WrapPrefix(err, ErrAuthFailed.Error(), 0)
	}
	return nil
}

// getInfo issues GETINFO for a single key and returns its value.
func (s *controlSession) getInfo(key string) (string, error) {
	lines, err := s.do("GETINFO " + key)
	if err != nil {
		return "", err
	}
	prefix := key + "="
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimPrefix(l, prefix), nil
		}
	}
	return "", errors.Errorf("tor control: GETINFO %s missing from reply", key)
}

// bootstrapPhase returns the raw "status/bootstrap-phase" line, e.g.
// `NOTICE BOOTSTRAP PROGRESS=100 TAG=done SUMMARY="Done"`.
func (s *controlSession) bootstrapPhase() (string, error) {
	return s.getInfo("status/bootstrap-phase")
}

// bootstrapComplete reports whether a bootstrapPhase() line indicates
// PROGRESS=100.
func bootstrapComplete(phase string) bool {
	return strings.Contains(phase, "PROGRESS=100")
}

// takeOwnership sends TAKEOWNERSHIP, instructing tor to exit when this
// control connection closes.
func (s *controlSession) takeOwnership() error {
	_, err := s.do("TAKEOWNERSHIP")
	return err
}

// resetOwningControllerPID clears tor's __OwningControllerProcess setting
// after TAKEOWNERSHIP has been established via the connection itself, the
// same two-step handshake the original SDK performs.
func (s *controlSession) resetOwningControllerPID() error {
	_, err := s.do("RESETCONF __OwningControllerProcess")
	return err
}

// addOnionV3 provisions a v3 hidden service mapping virtualPort to
// targetPort on loopback, using an existing ed25519 keypair. It returns the
// service ID (the address without ".onion") tor echoes back, which must
// match key-derived address computed by onionAddress.
func (s *controlSession) addOnionV3(key ed25519.PrivateKey, virtualPort, targetPort int) (string, error) {
	// Tor expects the 64-byte expanded form base64-encoded, without
	// padding, per control-spec.txt's ED25519-V3 key blob format.
	blob := base64.RawStdEncoding.EncodeToString(expandEd25519(key))

	cmd := fmt.Sprintf("ADD_ONION ED25519-V3:%s Port=%d,%d", blob, virtualPort, targetPort)
	lines, err := s.do(cmd)
	if err != nil {
		return "", errors.WrapPrefix(err, ErrOnionAddFailed.Error(), 0)
	}

	for _, l := range lines {
		if strings.HasPrefix(l, "ServiceID=") {
			return strings.TrimPrefix(l, "ServiceID="), nil
		}
	}
	return "", errors.WrapPrefix(errors.Errorf("ServiceID missing from ADD_ONION reply"), ErrOnionAddFailed.Error(), 0)
}

// delOnion removes a previously added hidden service.
func (s *controlSession) delOnion(serviceID string) error {
	_, err := s.do("DEL_ONION " + serviceID)
	return err
}

// close releases the underlying connection.
func (s *controlSession) close() error {
	return s.conn.Close()
}

// parseControlPortFile parses the contents tor writes to its
// ControlPortWriteToFile path, of the form "PORT=127.0.0.1:9051".
func parseControlPortFile(contents string) (string, error) {
	contents = strings.TrimSpace(contents)
	const prefix = "PORT="
	if !strings.HasPrefix(contents, prefix) {
		return "", errors.Errorf("tor: unexpected control port file contents %q", contents)
	}
	addr := strings.TrimPrefix(contents, prefix)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", wrap(err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return "", errors.Errorf("tor: invalid control port %q", portStr)
	}
	return net.JoinHostPort(host, portStr), nil
}
