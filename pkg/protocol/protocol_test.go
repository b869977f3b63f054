package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdsmart/mdc/pkg/protocol"
	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
)

func TestFrameUnframeRoundTrip(t *testing.T) {
	f, err := protocol.NewFramer("lz4")
	assert.Nil(t, err)

	wire, err := f.Frame(protocol.TagPREQ, []byte("select * from accounts"))
	assert.Nil(t, err)

	tag, payload, err := f.Unframe(wire)
	assert.Nil(t, err)
	assert.Equal(t, protocol.TagPREQ, tag)
	assert.Equal(t, "select * from accounts", string(payload))
}

func TestFrameEmptyPayload(t *testing.T) {
	f, err := protocol.NewFramer("lz4")
	assert.Nil(t, err)

	wire, err := f.Frame(protocol.TagACK, nil)
	assert.Nil(t, err)

	tag, payload, err := f.Unframe(wire)
	assert.Nil(t, err)
	assert.Equal(t, protocol.TagACK, tag)
	assert.Equal(t, 0, len(payload))
}

func TestIsOOB(t *testing.T) {
	assert.True(t, protocol.IsOOB([]byte{'B'}))
	assert.True(t, protocol.IsOOB([]byte{'E'}))
	assert.True(t, protocol.IsOOB([]byte{'E', 0}))
	assert.False(t, protocol.IsOOB([]byte{'D', 1, 2, 3}))
	assert.False(t, protocol.IsOOB(nil))
}
