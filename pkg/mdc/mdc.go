// Package mdc is the package-level control surface: a thin, process-wide
// singleton wrapper over pkg/client, for callers that want the original
// MDC_Start/MDC_CreateService/... call shape instead of constructing their
// own client.Client. Grounded on the teacher's legacy root canopen package,
// which plays the same "thin singleton wrapper" role over Network/BusManager.
package mdc

import (
	"sync"

	"github.com/pdsmart/mdc/internal/channel"
	"github.com/pdsmart/mdc/pkg/client"
	"github.com/pdsmart/mdc/pkg/transport"

	_ "github.com/pdsmart/mdc/pkg/transport/tcp"
)

var (
	mu            sync.Mutex
	defaultClient *client.Client
)

// Start initializes the default client over the named transport
// ("tcp" in production, "mock" in tests). Mirrors MDC_Start.
func Start(transportName string, opts ...client.Option) error {
	mu.Lock()
	defer mu.Unlock()
	c, err := client.New(transportName, opts...)
	if err != nil {
		return err
	}
	defaultClient = c
	return defaultClient.Start()
}

// End tears down the default client. Mirrors MDC_End.
func End() error {
	mu.Lock()
	c := defaultClient
	defaultClient = nil
	mu.Unlock()
	if c == nil {
		return nil
	}
	return c.End()
}

// SetTimeout configures one of NEW_SERVICE/SERVICE_REQUEST/SEND_REQUEST.
// Mirrors MDC_SetTimeout.
func SetTimeout(name string, ms uint32) error {
	return current().SetTimeout(name, ms)
}

// CreateService mirrors MDC_CreateService.
func CreateService(addr string, creds client.Credentials, sink channel.DataSink) (uint32, error) {
	return current().CreateService(addr, creds, sink)
}

// ChangeService mirrors MDC_ChangeService.
func ChangeService(channelID uint32, creds client.Credentials) error {
	return current().ChangeService(channelID, creds)
}

// SendRequest mirrors MDC_SendRequest.
func SendRequest(channelID uint32, request []byte) error {
	return current().SendRequest(channelID, request)
}

// GetResult mirrors MDC_GetResult.
func GetResult(channelID uint32) error {
	return current().GetResult(channelID)
}

// GetStatus mirrors MDC_GetStatus.
func GetStatus(channelID uint32) (bool, error) {
	return current().GetStatus(channelID)
}

// CloseService mirrors MDC_CloseService.
func CloseService(channelID uint32) error {
	return current().CloseService(channelID)
}

// TimerCB registers a periodic or one-shot callback on the transport
// passed as tr. There is no disabled mode: every call arms a timer, and
// the returned func cancels it. Mirrors MDC_TimerCB.
func TimerCB(tr transport.Transport, periodMs uint32, periodic bool, fn func()) func() {
	mode := transport.TimerOneShot
	if periodic {
		mode = transport.TimerPeriodic
	}
	return tr.RegisterTimer(periodMs, mode, fn)
}

func current() *client.Client {
	mu.Lock()
	defer mu.Unlock()
	return defaultClient
}
