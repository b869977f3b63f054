// Package audio implements the Audio back-end service kind by shelling
// out to a configured player binary. No library in the retrieved example
// pack addresses audio playback, so this driver is a deliberate,
// documented os/exec-only component (see DESIGN.md).
package audio

import (
	"os/exec"
	"strings"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// Handler invokes a configured player binary with the request payload
// (typically a file path) as its sole argument. There is no streaming
// reply: a successful play reports ok with no DATA frames.
type Handler struct {
	PlayerBin string
}

// NewHandler builds an audio handler using the given player binary,
// e.g. "aplay" or "afplay".
func NewHandler(playerBin string) *Handler {
	return &Handler{PlayerBin: playerBin}
}

// Handle plays the requested file. The Audio kind carries no credential
// fields in the data model, so creds is accepted only to satisfy
// services.Handler and is unused.
func (h *Handler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	path := strings.TrimSpace(string(request))
	if path == "" {
		return false, "empty audio path"
	}
	if err := exec.Command(h.PlayerBin, path).Run(); err != nil {
		return false, err.Error()
	}
	return true, ""
}
