package client_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdsmart/mdc/internal/channel"
	"github.com/pdsmart/mdc/pkg/client"
	"github.com/pdsmart/mdc/pkg/protocol"
	"github.com/pdsmart/mdc/pkg/transport/mock"

	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
)

// newTestClient builds a Client wired to one half of a mock.Pair, with the
// other half left for the test to act as a fake server.
func newTestClient(t *testing.T) (*client.Client, *mock.Transport) {
	clientSide, serverSide := mock.Pair()
	c, err := client.New("mock", client.WithTransport(clientSide))
	assert.Nil(t, err)
	assert.Nil(t, c.Start())
	t.Cleanup(func() { c.End() })
	return c, serverSide
}

func frame(t *testing.T, tag protocol.Tag, payload []byte) []byte {
	f, err := protocol.NewFramer("lz4")
	assert.Nil(t, err)
	wire, err := f.Frame(tag, payload)
	assert.Nil(t, err)
	return wire
}

func TestCreateServiceHappyPath(t *testing.T) {
	c, serverSide := newTestClient(t)

	var chID uint32
	go func() {
		for {
			_, id, ok, _ := serverSide.Recv(time.Second)
			if ok {
				chID = id
				serverSide.Send(id, frame(t, protocol.TagACK, nil))
				return
			}
		}
	}()

	id, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.Nil(t, err)
	assert.Equal(t, chID, id)
}

func TestCreateServiceRejected(t *testing.T) {
	c, serverSide := newTestClient(t)

	go func() {
		for {
			_, id, ok, _ := serverSide.Recv(time.Second)
			if ok {
				serverSide.Send(id, frame(t, protocol.TagNAK, []byte("no such service")))
				return
			}
		}
	}()

	_, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.NotNil(t, err)
}

func TestSendRequestCompletesAndDeliversData(t *testing.T) {
	c, serverSide := newTestClient(t)

	go func() {
		_, id, ok, _ := serverSide.Recv(time.Second)
		assert.True(t, ok)
		serverSide.Send(id, frame(t, protocol.TagACK, nil)) // service selection

		_, _, ok, _ = serverSide.Recv(time.Second) // PREQ
		assert.True(t, ok)
		serverSide.Send(id, frame(t, protocol.TagDATA, []byte("row 1")))
		serverSide.Send(id, frame(t, protocol.TagACK, nil)) // send-request complete
	}()

	var received []byte
	sink := func(id uint32, p []byte) { received = p }

	id, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, sink)
	assert.Nil(t, err)

	assert.Nil(t, c.SendRequest(id, []byte("ls")))
	assert.Nil(t, c.GetResult(id))
	assert.Equal(t, "row 1", string(received))
}

// TestGetResultWithoutSendRequestIsBadContext covers Scenario 4:
// get_result(id) without a preceding send-request must return BadContext
// immediately, not block for the send-request timeout and return Fail.
func TestGetResultWithoutSendRequestIsBadContext(t *testing.T) {
	c, serverSide := newTestClient(t)
	go func() {
		_, id, ok, _ := serverSide.Recv(time.Second)
		if ok {
			serverSide.Send(id, frame(t, protocol.TagACK, nil))
		}
	}()
	id, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.Nil(t, err)

	err = c.GetResult(id)
	assert.True(t, errors.Is(err, protocol.ErrBadContext))
}

func TestSendRequestOnUnknownChannelIsNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.SendRequest(42, []byte("x"))
	assert.Equal(t, channel.ErrNotFound, err)
}

// TestCreateServiceNoDaemonTimeout covers Scenario 1: connecting to an
// address with nothing on the other end of the mock pair must time out
// with ErrNoDaemon rather than hang.
func TestCreateServiceNoDaemonTimeout(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Nil(t, c.SetTimeout("NEW_SERVICE", 50))
	assert.Nil(t, c.SetTimeout("SERVICE_REQUEST", 50))

	_, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.True(t, errors.Is(err, protocol.ErrNoDaemon))
}

// TestEndRemovesAllChannels covers Scenario 6: End() sends EXIT for every
// open channel and leaves the registry empty.
func TestEndRemovesAllChannels(t *testing.T) {
	clientSide, serverSide := mock.Pair()
	c, err := client.New("mock", client.WithTransport(clientSide))
	assert.Nil(t, err)
	assert.Nil(t, c.Start())

	go func() {
		for i := 0; i < 2; i++ {
			_, id, ok, _ := serverSide.Recv(time.Second)
			if ok {
				serverSide.Send(id, frame(t, protocol.TagACK, nil))
			}
		}
	}()

	id1, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.Nil(t, err)
	id2, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.Nil(t, err)
	assert.NotEqual(t, id1, id2)

	assert.Nil(t, c.End())

	f, err := protocol.NewFramer("lz4")
	assert.Nil(t, err)
	gotExit := 0
	for i := 0; i < 2; i++ {
		wire, _, ok, _ := serverSide.Recv(time.Second)
		if !ok {
			continue
		}
		tag, _, uerr := f.Unframe(wire)
		assert.Nil(t, uerr)
		if tag == protocol.TagEXIT {
			gotExit++
		}
	}
	assert.Equal(t, 2, gotExit)

	// Both records are gone: closing either id again finds nothing.
	assert.Equal(t, channel.ErrNotFound, c.CloseService(id1))
	assert.Equal(t, channel.ErrNotFound, c.CloseService(id2))
}

func TestCloseServiceTwiceFails(t *testing.T) {
	c, serverSide := newTestClient(t)
	go func() {
		_, id, ok, _ := serverSide.Recv(time.Second)
		if ok {
			serverSide.Send(id, frame(t, protocol.TagACK, nil))
		}
	}()
	id, err := c.CreateService("mock://", client.Credentials{Kind: protocol.KindSysCmd}, nil)
	assert.Nil(t, err)
	assert.Nil(t, c.CloseService(id))
	assert.NotNil(t, c.CloseService(id))
}
