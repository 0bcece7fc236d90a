// Package fakebus simulates a MoatBus wired-OR bus over a Unix domain
// socket, standing in for internal/halgpio when no real wires are
// attached: every connected client's driven byte is ORed together and
// the combined value is fanned back out to all clients, the same
// many-drivers-one-line behaviour real hardware gives for free.
package fakebus

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// Server is the simulator daemon. One byte per message: the sender's
// currently-driven wire mask. On any change to the OR of all connected
// clients, the new combined mask is broadcast to everyone, including
// the client that caused the change (mirroring the self-echo real
// open-drain wires produce).
type Server struct {
	mu      sync.Mutex
	clients map[*serverConn]uint32
	ln      *net.UnixListener
}

type serverConn struct {
	conn net.Conn
	pid  int
}

// Listen opens the Unix socket at path and returns a Server ready to
// Serve. An existing socket file at path is removed first.
func Listen(path string) (*Server, error) {
	_ = unix.Unlink(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return &Server{clients: map[*serverConn]uint32{}, ln: ln}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) Close() error {
	return s.ln.Close()
}

func peerPID(conn net.Conn) int {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return -1
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return -1
	}
	var pid int
	_ = raw.Control(func(fd uintptr) {
		cred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err == nil {
			pid = int(cred.Pid)
		}
	})
	return pid
}

func (s *Server) handle(conn net.Conn) {
	sc := &serverConn{conn: conn, pid: peerPID(conn)}
	s.mu.Lock()
	s.clients[sc] = 0
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, sc)
		s.broadcastLocked()
		s.mu.Unlock()
		conn.Close()
	}()

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
		s.mu.Lock()
		s.clients[sc] = uint32(buf[0])
		s.broadcastLocked()
		s.mu.Unlock()
	}
}

func (s *Server) combinedLocked() uint32 {
	var v uint32
	for _, bits := range s.clients {
		v |= bits
	}
	return v
}

func (s *Server) broadcastLocked() {
	combined := byte(s.combinedLocked())
	for sc := range s.clients {
		_, _ = sc.conn.Write([]byte{combined})
	}
}

// ClientInfo reports diagnostic state for an attached client, surfaced
// through cmd/moatbus-fake's status output.
func (s *Server) ClientInfo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for sc, bits := range s.clients {
		out = append(out, fmt.Sprintf("pid=%d bits=%#02x", sc.pid, bits))
	}
	return out
}
