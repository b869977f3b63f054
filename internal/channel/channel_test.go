package channel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdsmart/mdc/internal/channel"
	"github.com/pdsmart/mdc/pkg/protocol"
)

func TestLegalLifecycle(t *testing.T) {
	ch := channel.NewChannel(1, nil)
	assert.Equal(t, channel.StateIdleless, ch.State())

	assert.Nil(t, ch.BeginMakingConn())
	assert.Equal(t, channel.StateMakingConn, ch.State())

	assert.Nil(t, ch.BeginServiceRequest())
	assert.Equal(t, channel.StateInServiceRequest, ch.State())

	assert.Nil(t, ch.CompleteServiceRequest(true))
	assert.Equal(t, channel.StateIdle, ch.State())

	assert.Nil(t, ch.BeginSendRequest())
	assert.Equal(t, channel.StateInSendRequest, ch.State())

	assert.Nil(t, ch.CompleteSendRequest(nil))
	assert.Equal(t, channel.StateSendRequestComplete, ch.State())

	assert.Nil(t, ch.Reidle())
	assert.Equal(t, channel.StateIdle, ch.State())
}

func TestServiceRequestRejected(t *testing.T) {
	ch := channel.NewChannel(2, nil)
	assert.Nil(t, ch.BeginMakingConn())
	assert.Nil(t, ch.BeginServiceRequest())
	assert.Nil(t, ch.CompleteServiceRequest(false))
	assert.Equal(t, channel.StateIdleless, ch.State())
}

func TestIllegalTransitionReturnsBadContext(t *testing.T) {
	ch := channel.NewChannel(3, nil)
	err := ch.BeginSendRequest()
	assert.NotNil(t, err)
	assert.True(t, errors.Is(err, protocol.ErrBadContext))
	assert.Equal(t, channel.StateIdleless, ch.State())
}

func TestRegistryDuplicateInsert(t *testing.T) {
	r := channel.NewRegistry()
	ch := channel.NewChannel(5, nil)
	assert.Nil(t, r.Insert(ch))
	assert.Equal(t, channel.ErrDuplicateChannel, r.Insert(ch))
}

func TestRegistryLookupNotFound(t *testing.T) {
	r := channel.NewRegistry()
	_, err := r.Lookup(99)
	assert.Equal(t, channel.ErrNotFound, err)
}

func TestDataSinkInvokedWhileInSendRequest(t *testing.T) {
	var gotID uint32
	var gotPayload []byte
	ch := channel.NewChannel(7, func(id uint32, p []byte) {
		gotID = id
		gotPayload = p
	})
	assert.Nil(t, ch.BeginMakingConn())
	assert.Nil(t, ch.BeginServiceRequest())
	assert.Nil(t, ch.CompleteServiceRequest(true))
	assert.Nil(t, ch.BeginSendRequest())

	ch.DeliverData([]byte("hello"))
	assert.Equal(t, uint32(7), gotID)
	assert.Equal(t, "hello", string(gotPayload))
}

func TestDataSinkNotInvokedOutsideSendRequest(t *testing.T) {
	invoked := false
	ch := channel.NewChannel(8, func(id uint32, p []byte) {
		invoked = true
	})
	ch.DeliverData([]byte("hello"))
	assert.False(t, invoked)

	assert.Nil(t, ch.BeginMakingConn())
	assert.Nil(t, ch.BeginServiceRequest())
	assert.Nil(t, ch.CompleteServiceRequest(true))
	ch.DeliverData([]byte("hello"))
	assert.False(t, invoked)
}
