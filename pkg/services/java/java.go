// Package java implements the Java back-end service kind by shelling out
// to a configured JVM. No library in the retrieved example pack addresses
// JVM invocation, so this driver is a deliberate, documented os/exec-only
// component (see DESIGN.md).
package java

import (
	"bufio"
	"os/exec"
	"strings"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// Handler invokes `java -jar Jar <request-as-args>` and streams stdout
// lines as DATA chunks.
type Handler struct {
	JavaBin string
	Jar     string
}

// NewHandler builds a java handler for the given jar, defaulting to the
// "java" binary found on PATH.
func NewHandler(jar string) *Handler {
	return &Handler{JavaBin: "java", Jar: jar}
}

// Handle invokes the JVM. The Java kind carries no credential fields in
// the data model, so creds is accepted only to satisfy services.Handler
// and is unused.
func (h *Handler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	args := append([]string{"-jar", h.Jar}, strings.Fields(string(request))...)
	cmd := exec.Command(h.JavaBin, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return false, err.Error()
	}
	if err := cmd.Start(); err != nil {
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
