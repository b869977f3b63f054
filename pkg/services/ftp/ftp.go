// Package ftp implements the FTP back-end service kind using
// github.com/jlaffaye/ftp, the actively maintained FTP client found in the
// retrieved example pack.
package ftp

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// Handler retrieves a file named by the request payload from an FTP
// server and streams its contents as DATA chunks. Server/User/Password
// default to the channel's selected credentials (protocol.Credentials);
// the Fallback* fields are used only when a channel selects FTP without
// supplying them.
type Handler struct {
	FallbackAddr     string
	FallbackUser     string
	FallbackPassword string
}

// NewHandler builds an FTP handler with fallback server/credentials.
func NewHandler(addr, user, password string) *Handler {
	return &Handler{FallbackAddr: addr, FallbackUser: user, FallbackPassword: password}
}

// Handle treats the request payload as a remote file path to retrieve.
func (h *Handler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	addr := creds.Server
	if addr == "" {
		addr = h.FallbackAddr
	}
	user := creds.User
	if user == "" {
		user = h.FallbackUser
	}
	password := creds.Password
	if password == "" {
		password = h.FallbackPassword
	}
	if addr == "" {
		return false, "ftp: no server address from credentials or fallback config"
	}

	c, err := ftp.Dial(addr, ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return false, err.Error()
	}
	defer c.Quit()

	if err := c.Login(user, password); err != nil {
		return false, err.Error()
	}

	path := string(bytes.TrimSpace(request))
	r, err := c.Retr(path)
	if err != nil {
		return false, err.Error()
	}
	defer r.Close()

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, fmt.Sprintf("ftp: read %s: %v", path, err)
		}
	}
	return true, ""
}
