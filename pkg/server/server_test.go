package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdsmart/mdc/pkg/protocol"
	"github.com/pdsmart/mdc/pkg/server"
	"github.com/pdsmart/mdc/pkg/services"
	"github.com/pdsmart/mdc/pkg/transport/mock"

	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
)

type echoHandler struct{}

func (echoHandler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	sink(request)
	return true, ""
}

type failHandler struct{ text string }

func (h failHandler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	return false, h.text
}

func frame(t *testing.T, tag protocol.Tag, payload []byte) []byte {
	f, err := protocol.NewFramer("lz4")
	assert.Nil(t, err)
	wire, err := f.Frame(tag, payload)
	assert.Nil(t, err)
	return wire
}

func unframe(t *testing.T, wire []byte) (protocol.Tag, []byte) {
	f, err := protocol.NewFramer("lz4")
	assert.Nil(t, err)
	tag, payload, err := f.Unframe(wire)
	assert.Nil(t, err)
	return tag, payload
}

func newTestServer(t *testing.T, handlers *services.Registry) (*mock.Transport, context.CancelFunc) {
	testSide, serverSide := mock.Pair()
	srv, err := server.New("mock", handlers, server.WithTransport(serverSide))
	assert.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, "mock://")
	t.Cleanup(cancel)
	return testSide, cancel
}

func TestChangeServiceAcksKnownKind(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	testSide, _ := newTestServer(t, handlers)

	testSide.Send(1, frame(t, protocol.TagCHANGE, []byte{protocol.KindSysCmd}))
	wire, id, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), id)
	tag, _ := unframe(t, wire)
	assert.Equal(t, protocol.TagACK, tag)
}

func TestChangeServiceNaksUnknownKind(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	testSide, _ := newTestServer(t, handlers)

	testSide.Send(1, frame(t, protocol.TagCHANGE, []byte{protocol.KindFTP}))
	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, _ := unframe(t, wire)
	assert.Equal(t, protocol.TagNAK, tag)
}

// selectService sends a CHANGE frame selecting kind on channelID and
// drains its ACK reply before returning.
func selectService(t *testing.T, testSide *mock.Transport, channelID uint32, kind byte) {
	creds := protocol.Credentials{Kind: kind}
	testSide.Send(channelID, frame(t, protocol.TagCHANGE, creds.Encode()))
	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, _ := unframe(t, wire)
	assert.Equal(t, protocol.TagACK, tag)
}

func TestPREQDispatchesToHandlerAndStreamsData(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	testSide, _ := newTestServer(t, handlers)

	selectService(t, testSide, 1, protocol.KindSysCmd)
	testSide.Send(1, frame(t, protocol.TagPREQ, []byte("echo me")))

	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, payload := unframe(t, wire)
	assert.Equal(t, protocol.TagDATA, tag)
	assert.Equal(t, "echo me", string(payload))

	wire, _, ok, _ = testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, _ = unframe(t, wire)
	assert.Equal(t, protocol.TagACK, tag)
}

func TestPREQFailureNaks(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, failHandler{text: "boom"})
	testSide, _ := newTestServer(t, handlers)

	selectService(t, testSide, 1, protocol.KindSysCmd)
	testSide.Send(1, frame(t, protocol.TagPREQ, []byte("anything")))
	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, payload := unframe(t, wire)
	assert.Equal(t, protocol.TagNAK, tag)
	assert.Equal(t, "boom", string(payload))
}

func TestPREQRoutesByChannelsSelectedKind(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	handlers.Register(protocol.KindFTP, failHandler{text: "wrong kind"})
	testSide, _ := newTestServer(t, handlers)

	selectService(t, testSide, 1, protocol.KindSysCmd)
	testSide.Send(1, frame(t, protocol.TagPREQ, []byte("echo me")))

	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, payload := unframe(t, wire)
	assert.Equal(t, protocol.TagDATA, tag)
	assert.Equal(t, "echo me", string(payload))
}

func TestPREQWithoutServiceSelectionNaks(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	testSide, _ := newTestServer(t, handlers)

	testSide.Send(1, frame(t, protocol.TagPREQ, []byte("anything")))
	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, _ := unframe(t, wire)
	assert.Equal(t, protocol.TagNAK, tag)
}

func TestInitAndChangeAreHandledIdentically(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	testSide, _ := newTestServer(t, handlers)

	creds := protocol.Credentials{Kind: protocol.KindSysCmd}
	testSide.Send(1, frame(t, protocol.TagINIT, creds.Encode()))
	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, _ := unframe(t, wire)
	assert.Equal(t, protocol.TagACK, tag)

	testSide.Send(1, frame(t, protocol.TagPREQ, []byte("echo me")))
	wire, _, ok, _ = testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, payload := unframe(t, wire)
	assert.Equal(t, protocol.TagDATA, tag)
	assert.Equal(t, "echo me", string(payload))
}

func TestOOBAbortBypassesFIFO(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})
	testSide, _ := newTestServer(t, handlers)

	selectService(t, testSide, 1, protocol.KindSysCmd)
	testSide.Send(1, frame(t, protocol.TagABORT, nil))
	testSide.Send(1, frame(t, protocol.TagPREQ, []byte("should still work")))

	wire, _, ok, _ := testSide.Recv(time.Second)
	assert.True(t, ok)
	tag, _ := unframe(t, wire)
	assert.Equal(t, protocol.TagDATA, tag)
}

func TestOOBAbortInvokesControlSink(t *testing.T) {
	handlers := services.NewRegistry()
	handlers.Register(protocol.KindSysCmd, echoHandler{})

	testSide, serverSide := mock.Pair()
	var events []string
	srv, err := server.New("mock", handlers, server.WithTransport(serverSide),
		server.WithControlSink(func(event string, channelID uint32) {
			events = append(events, event)
		}))
	assert.Nil(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, "mock://")
	t.Cleanup(cancel)

	testSide.Send(1, frame(t, protocol.TagABORT, nil))
	time.Sleep(100 * time.Millisecond)
	assert.Contains(t, events, "ABORT")
}
