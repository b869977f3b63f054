package protocol

// Credentials carries the fixed-width, null-padded fields of a
// service-selection payload. Which fields are meaningful depends on Kind:
// Sybase/ODBC use all four, FTP uses Server/User/Password, and
// Java/SysCmd/Audio use none. Lives in pkg/protocol (rather than
// pkg/client) so both the client, which encodes it, and the server, which
// must decode it to drive per-request authentication, can share one
// definition without depending on each other.
type Credentials struct {
	Kind     byte
	User     string
	Password string
	Server   string
	Database string
}

// Encode packs the credentials into the fixed-width INIT/CHANGE payload.
func (c Credentials) Encode() []byte {
	buf := make([]byte, 1+MaxUsernameLen+MaxPasswordLen+MaxServerLen+MaxDBNameLen)
	buf[0] = c.Kind
	off := 1
	off += putPadded(buf[off:off+MaxUsernameLen], c.User)
	off += putPadded(buf[off:off+MaxPasswordLen], c.Password)
	off += putPadded(buf[off:off+MaxServerLen], c.Server)
	putPadded(buf[off:off+MaxDBNameLen], c.Database)
	return buf
}

// DecodeCredentials unpacks an INIT/CHANGE payload produced by Encode.
func DecodeCredentials(payload []byte) Credentials {
	var c Credentials
	if len(payload) == 0 {
		return c
	}
	c.Kind = payload[0]
	off := 1
	c.User = takePadded(payload, off, MaxUsernameLen)
	off += MaxUsernameLen
	c.Password = takePadded(payload, off, MaxPasswordLen)
	off += MaxPasswordLen
	c.Server = takePadded(payload, off, MaxServerLen)
	off += MaxServerLen
	c.Database = takePadded(payload, off, MaxDBNameLen)
	return c
}

func putPadded(dst []byte, s string) int {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return len(dst)
}

func takePadded(src []byte, off, width int) string {
	if off+width > len(src) {
		return ""
	}
	field := src[off : off+width]
	n := 0
	for n < len(field) && field[n] != 0 {
		n++
	}
	return string(field[:n])
}
