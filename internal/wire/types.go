// Package wire implements the upstream websocket framing: decoding
// inbound frames and building outbound subscribe/unsubscribe/ping
// commands. It holds no state.
package wire

import (
	"encoding/json"
	"strings"
)

type Channel string

const (
	ChannelPong        Channel = "pong"
	ChannelSubResponse Channel = "subscriptionResponse"
	ChannelWebData2    Channel = "webData2"
	ChannelAllMids     Channel = "allMids"
)

// Subscription is one outbound subscription payload. Its canonical Key
// identifies the logical channel: two subscriptions with equivalent
// parameters produce the same key.
type Subscription struct {
	Type Channel `json:"type"`
	User string  `json:"user,omitempty"`
	Coin string  `json:"coin,omitempty"`
}

// WebData2Sub builds an account-feed subscription. The address is
// lower-cased so differently-cased spellings collapse to one entry.
func WebData2Sub(user string) Subscription {
	return Subscription{Type: ChannelWebData2, User: strings.ToLower(user)}
}

func AllMidsSub() Subscription {
	return Subscription{Type: ChannelAllMids}
}

func (s Subscription) Key() string {
	if s.User != "" {
		return string(s.Type) + ":" + strings.ToLower(s.User)
	}
	if s.Coin != "" {
		return string(s.Type) + ":" + s.Coin
	}
	return string(s.Type)
}

// Command is the outbound message shape.
type Command struct {
	Method       string `json:"method"`
	Subscription any    `json:"subscription,omitempty"`
}

func SubscribeCmd(sub Subscription) Command {
	return Command{Method: "subscribe", Subscription: sub}
}

func UnsubscribeCmd(sub Subscription) Command {
	return Command{Method: "unsubscribe", Subscription: sub}
}

func PingCmd() Command {
	return Command{Method: "ping"}
}

// Kind classifies a decoded inbound frame.
type Kind int

const (
	KindData Kind = iota
	KindPong
	KindAck
)

// Frame is one decoded inbound message. Data is left raw; channel-specific
// payload decoding happens downstream.
type Frame struct {
	Kind    Kind
	Channel Channel
	Data    json.RawMessage
}

// AllMids is the payload of an allMids frame.
type AllMids struct {
	Mids map[string]string `json:"mids"`
}
