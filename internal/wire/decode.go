package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/hlview/hl-dashboard/internal/account"
)

var pongText = []byte("pong")

// Decode parses one raw inbound message. Liveness replies arrive in three
// observed encodings: the bare text `pong`, `{"channel":"pong"}` and
// `{"type":"pong"}`. All map to KindPong.
func Decode(raw []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, pongText) {
		return Frame{Kind: KindPong, Channel: ChannelPong}, nil
	}

	var envelope struct {
		Channel Channel         `json:"channel"`
		Type    Channel         `json:"type"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	channel := envelope.Channel
	if channel == "" {
		channel = envelope.Type
	}

	switch channel {
	case ChannelPong:
		return Frame{Kind: KindPong, Channel: ChannelPong}, nil
	case ChannelSubResponse:
		return Frame{Kind: KindAck, Channel: ChannelSubResponse, Data: envelope.Data}, nil
	case "":
		return Frame{}, fmt.Errorf("frame without channel: %s", trimmed)
	default:
		return Frame{Kind: KindData, Channel: channel, Data: envelope.Data}, nil
	}
}

// DecodeAllMids validates and decodes an allMids payload.
func DecodeAllMids(data []byte) (AllMids, error) {
	var mids AllMids
	if err := json.Unmarshal(data, &mids); err != nil {
		return AllMids{}, fmt.Errorf("decode allMids: %w", err)
	}
	if mids.Mids == nil {
		return AllMids{}, fmt.Errorf("allMids payload without mids field")
	}
	return mids, nil
}

// UserOf extracts the user address from a data payload, when present.
// Used to route user-scoped frames to the matching subscription entry.
func UserOf(data []byte) string {
	return gjson.GetBytes(data, "user").String()
}

// accountExtractor is one candidate interpretation of an account payload.
// Upstream nests the clearinghouse object inconsistently across
// equivalent channels, so extractors are tried in order until one
// succeeds.
type accountExtractor func(data []byte) (account.Snapshot, bool)

var accountExtractors = []accountExtractor{
	extractNested,
	extractTopLevel,
	extractLenient,
}

// DecodeAccountData decodes an account data payload, tolerating both
// nesting variants and, failing the strict shapes, a lenient minimal
// check before giving up.
func DecodeAccountData(data []byte) (account.Snapshot, error) {
	for _, extract := range accountExtractors {
		if snap, ok := extract(data); ok {
			return snap, nil
		}
	}
	return account.Snapshot{}, fmt.Errorf("account payload matches no known shape")
}

// extractNested handles {"user":..., "clearinghouseState":{...}}.
func extractNested(data []byte) (account.Snapshot, bool) {
	var payload struct {
		User               string                      `json:"user"`
		ClearinghouseState *account.ClearinghouseState `json:"clearinghouseState"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return account.Snapshot{}, false
	}
	if payload.ClearinghouseState == nil || payload.ClearinghouseState.MarginSummary == nil {
		return account.Snapshot{}, false
	}
	return payload.ClearinghouseState.Snapshot(payload.User), true
}

// extractTopLevel handles clearinghouse fields directly at the top level.
func extractTopLevel(data []byte) (account.Snapshot, bool) {
	var payload struct {
		User string `json:"user"`
		account.ClearinghouseState
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return account.Snapshot{}, false
	}
	if payload.MarginSummary == nil {
		return account.Snapshot{}, false
	}
	return payload.ClearinghouseState.Snapshot(payload.User), true
}

// extractLenient accepts a payload whose minimum fields are structurally
// present even though the strict shapes did not match, e.g. a tick
// carrying only withdrawable or only positions.
func extractLenient(data []byte) (account.Snapshot, bool) {
	body := data
	if nested := gjson.GetBytes(data, "clearinghouseState"); nested.Exists() {
		body = []byte(nested.Raw)
	}

	res := gjson.GetBytes(body, "marginSummary.accountValue")
	positions := gjson.GetBytes(body, "assetPositions")
	withdrawable := gjson.GetBytes(body, "withdrawable")
	if !res.Exists() && !positions.Exists() && !withdrawable.Exists() {
		return account.Snapshot{}, false
	}

	var state account.ClearinghouseState
	if err := json.Unmarshal(body, &state); err != nil {
		return account.Snapshot{}, false
	}
	return state.Snapshot(gjson.GetBytes(data, "user").String()), true
}
