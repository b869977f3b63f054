// Package syscmd implements the system-command back-end service kind: the
// request payload is a command line, executed via os/exec, with an
// optional pty-backed interactive variant using github.com/kr/pty.
package syscmd

import (
	"bufio"
	"io"
	"os/exec"
	"strings"

	"github.com/kr/pty"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// Handler runs a command line and streams its output as DATA chunks, one
// per line. The plain variant reads standard output only; the pty variant
// reads everything the command writes to its terminal.
type Handler struct {
	// Shell is the interpreter used to run the command line, e.g.
	// []string{"/bin/sh", "-c"}.
	Shell []string
	// Interactive selects the pty-backed variant, needed for commands
	// that behave differently when not attached to a terminal.
	Interactive bool
}

// NewHandler builds a syscmd handler using /bin/sh -c by default.
func NewHandler() *Handler {
	return &Handler{Shell: []string{"/bin/sh", "-c"}}
}

// Handle runs the request as a command line. The system-command kind
// carries no credential fields in the data model (unlike Sybase/ODBC/FTP),
// so creds is accepted only to satisfy services.Handler and is unused.
func (h *Handler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	line := strings.TrimSpace(string(request))
	if line == "" {
		return false, "empty command"
	}
	args := append(append([]string{}, h.Shell[1:]...), line)
	cmd := exec.Command(h.Shell[0], args...)

	var out io.ReadCloser
	var err error
	if h.Interactive {
		var f io.ReadWriteCloser
		f, err = pty.Start(cmd)
		if err == nil {
			out = f
		}
	} else {
		out, err = cmd.StdoutPipe()
		if err == nil {
			err = cmd.Start()
		}
	}
	if err != nil {
		return false, err.Error()
	}

	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		sink(append(scanner.Bytes(), '\n'))
	}
	if err := cmd.Wait(); err != nil {
		return false, err.Error()
	}
	return true, ""
}
