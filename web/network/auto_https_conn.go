// Package network lets the HTTPS port answer plain HTTP requests with a
// redirect to the same URL over HTTPS.
package network

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

// tlsHandshake is the record type that opens every TLS connection.
const tlsHandshake = 0x16

// errRedirected is returned by Read after a plain HTTP request was answered.
var errRedirected = errors.New("plain http request redirected to https")

// AutoHttpsConn sniffs the first byte of a connection. TLS traffic passes
// through untouched; a plain HTTP request gets a redirect and the connection
// is closed.
type AutoHttpsConn struct {
	net.Conn

	reader *bufio.Reader
	once   sync.Once
	err    error
}

func NewAutoHttpsConn(conn net.Conn) net.Conn {
	return &AutoHttpsConn{Conn: conn, reader: bufio.NewReader(conn)}
}

func (c *AutoHttpsConn) sniff() {
	// A silent client must not pin the connection forever.
	_ = c.Conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer c.Conn.SetReadDeadline(time.Time{})

	first, err := c.reader.Peek(1)
	if err != nil || first[0] == tlsHandshake {
		return
	}
	req, err := http.ReadRequest(c.reader)
	if err != nil {
		c.err = err
		_ = c.Conn.Close()
		return
	}
	resp := &http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Close:      true,
	}
	resp.Header.Set("Location", "https://"+req.Host+req.URL.RequestURI())
	_ = resp.Write(c.Conn)
	_ = c.Conn.Close()
	c.err = errRedirected
}

func (c *AutoHttpsConn) Read(buf []byte) (int, error) {
	c.once.Do(c.sniff)
	if c.err != nil {
		return 0, c.err
	}
	return c.reader.Read(buf)
}
