package wpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRfkillEventRoundTrip(t *testing.T) {
	e := rfkillEvent{Idx: 3, Type: rfkillTypeWlan, Op: rfkillOpChangeAll, Soft: true}

	b := e.marshal()
	assert.Equal(t, []byte{3, 0, 0, 0, 1, 3, 1, 0}, b)

	parsed, err := parseRfkillEvent(b)
	require.NoError(t, err)
	assert.Equal(t, e, parsed)

	_, err = parseRfkillEvent(b[:5])
	assert.Error(t, err)
}

func TestWlanDevices(t *testing.T) {
	devices := wlanDevices{}
	assert.False(t, devices.enabled())

	// bluetooth is ignored
	assert.False(t, devices.apply(rfkillEvent{Idx: 0, Type: 2, Op: rfkillOpAdd}))
	assert.False(t, devices.enabled())

	assert.True(t, devices.apply(rfkillEvent{Idx: 1, Type: rfkillTypeWlan, Op: rfkillOpAdd, Soft: true}))
	assert.False(t, devices.enabled())

	devices.apply(rfkillEvent{Idx: 1, Type: rfkillTypeWlan, Op: rfkillOpChange})
	assert.True(t, devices.enabled())

	devices.apply(rfkillEvent{Type: rfkillTypeWlan, Op: rfkillOpChangeAll, Soft: true})
	assert.False(t, devices.enabled())

	devices.apply(rfkillEvent{Idx: 2, Type: rfkillTypeWlan, Op: rfkillOpAdd, Hard: true})
	devices.apply(rfkillEvent{Type: rfkillTypeAll, Op: rfkillOpChangeAll})
	assert.True(t, devices.enabled())

	devices.apply(rfkillEvent{Idx: 1, Type: rfkillTypeWlan, Op: rfkillOpDel})
	assert.False(t, devices.enabled())
}
