package link

import (
	"net"
	"time"
)

// connLink adapts a net.Conn to the Link interface.
type connLink struct {
	net.Conn
	name string
}

// WrapConn wraps a net.Conn as a Link named after its remote address.
func WrapConn(c net.Conn) Link {
	return &connLink{Conn: c, name: c.RemoteAddr().String()}
}

// NewConnLink wraps a net.Conn as a Link with an explicit name.
//
// Useful for tests, where net.Pipe ends have no meaningful address.
func NewConnLink(c net.Conn, name string) Link {
	return &connLink{Conn: c, name: name}
}

func (l *connLink) Name() string { return l.name }

func (l *connLink) SetReadDeadline(t time.Time) error {
	return l.Conn.SetReadDeadline(t)
}
