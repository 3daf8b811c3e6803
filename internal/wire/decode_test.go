package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PongForms(t *testing.T) {
	// The upstream answers liveness pings in three observed encodings.
	forms := [][]byte{
		[]byte("pong"),
		[]byte(` pong `),
		[]byte(`{"channel":"pong"}`),
		[]byte(`{"type":"pong"}`),
	}

	for _, raw := range forms {
		frame, err := Decode(raw)
		require.NoError(t, err, "raw=%s", raw)
		assert.Equal(t, KindPong, frame.Kind, "raw=%s", raw)
		assert.Equal(t, ChannelPong, frame.Channel, "raw=%s", raw)
	}
}

func TestDecode_SubscriptionAck(t *testing.T) {
	raw := []byte(`{"channel":"subscriptionResponse","data":{"method":"subscribe","subscription":{"type":"allMids"}}}`)

	frame, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindAck, frame.Kind)
	assert.Equal(t, ChannelSubResponse, frame.Channel)
	assert.NotEmpty(t, frame.Data)
}

func TestDecode_DataFrame(t *testing.T) {
	raw := []byte(`{"channel":"allMids","data":{"mids":{"ETH":"3000.5"}}}`)

	frame, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindData, frame.Kind)
	assert.Equal(t, ChannelAllMids, frame.Channel)
	assert.JSONEq(t, `{"mids":{"ETH":"3000.5"}}`, string(frame.Data))
}

func TestDecode_UnknownChannelStillData(t *testing.T) {
	frame, err := Decode([]byte(`{"channel":"candle","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, KindData, frame.Kind)
	assert.Equal(t, Channel("candle"), frame.Channel)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestDecodeAllMids(t *testing.T) {
	mids, err := DecodeAllMids([]byte(`{"mids":{"ETH":"3000.5","BTC":"60000"}}`))
	require.NoError(t, err)
	assert.Equal(t, "3000.5", mids.Mids["ETH"])
	assert.Equal(t, "60000", mids.Mids["BTC"])
}

func TestDecodeAllMids_MissingMids(t *testing.T) {
	_, err := DecodeAllMids([]byte(`{}`))
	assert.Error(t, err)
}

func TestUserOf(t *testing.T) {
	assert.Equal(t, "0xAbC", UserOf([]byte(`{"user":"0xAbC"}`)))
	assert.Empty(t, UserOf([]byte(`{"mids":{}}`)))
}

func TestDecodeAccountData_Nested(t *testing.T) {
	data := []byte(`{
		"user": "0xabc",
		"clearinghouseState": {
			"marginSummary": {"accountValue": "100.0", "totalMarginUsed": "20.0", "totalNtlPos": "40.0", "totalRawUsd": "100.0"},
			"withdrawable": "80.0",
			"assetPositions": [],
			"time": 1
		}
	}`)

	snap, err := DecodeAccountData(data)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", snap.User)
	assert.Equal(t, "100.0", snap.AccountValue)
	assert.Equal(t, "80.0", snap.Withdrawable)
}

func TestDecodeAccountData_TopLevel(t *testing.T) {
	data := []byte(`{
		"user": "0xabc",
		"marginSummary": {"accountValue": "55.0", "totalMarginUsed": "0", "totalNtlPos": "0", "totalRawUsd": "55.0"},
		"withdrawable": "55.0"
	}`)

	snap, err := DecodeAccountData(data)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", snap.User)
	assert.Equal(t, "55.0", snap.AccountValue)
}

func TestDecodeAccountData_LenientWithdrawableOnly(t *testing.T) {
	// Degenerate tick: no margin summary, only withdrawable.
	snap, err := DecodeAccountData([]byte(`{"user":"0xabc","withdrawable":"12.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", snap.User)
	assert.Equal(t, "12.0", snap.Withdrawable)
	assert.Empty(t, snap.AccountValue)
}

func TestDecodeAccountData_LenientNestedPositionsOnly(t *testing.T) {
	data := []byte(`{
		"user": "0xabc",
		"clearinghouseState": {
			"assetPositions": [
				{"type": "oneWay", "position": {"coin": "ETH", "szi": "1.0", "positionValue": "3000", "unrealizedPnl": "0", "returnOnEquity": "0", "marginUsed": "10"}}
			]
		}
	}`)

	snap, err := DecodeAccountData(data)
	require.NoError(t, err)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "ETH", snap.Positions[0].Coin)
}

func TestDecodeAccountData_NoKnownShape(t *testing.T) {
	_, err := DecodeAccountData([]byte(`{"mids":{"ETH":"3000"}}`))
	assert.Error(t, err)
}
