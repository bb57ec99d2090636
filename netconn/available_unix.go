//go:build linux || darwin || freebsd || netbsd || openbsd

package netconn

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// queuedBytes returns the length of the socket's receive queue. ok is false if
// the connection doesn't expose a file descriptor.
func queuedBytes(conn net.Conn) (n int, ok bool, err error) {
	sc, isSyscallConn := conn.(syscall.Conn)
	if !isSyscallConn {
		return 0, false, nil
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false, nil //nolint:nilerr // fall back to probing
	}

	var ioctlErr error
	if err := raw.Control(func(fd uintptr) {
		n, ioctlErr = unix.IoctlGetInt(int(fd), unix.SIOCINQ) // SIOCINQ == FIONREAD on Linux
	}); err != nil {
		return 0, true, err
	}
	if ioctlErr != nil {
		return 0, false, nil //nolint:nilerr // e.g. not a socket, fall back to probing
	}

	return n, true, nil
}
