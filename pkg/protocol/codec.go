package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Websocket subprotocols, one per codec. A connection that negotiates none speaks JSON.
const (
	SubprotocolJSON    = "relay.json"
	SubprotocolMsgPack = "relay.msgpack"
)

// Codec turns one Message into one transport frame and back.
type Codec interface {
	Name() string
	// Binary reports whether frames should go out as binary websocket messages.
	Binary() bool
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// Subprotocols lists the codecs a relay endpoint offers, preferred first.
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgPack}
}

// CodecFor maps a negotiated subprotocol to its codec.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgPack {
		return MsgPack
	}
	return JSON
}

// Encode and Decode use the JSON codec.
func Encode(m Message) ([]byte, error) { return JSON.Encode(m) }

func Decode(b []byte) (Message, error) { return JSON.Decode(b) }

type jsonCodec struct{}

func (jsonCodec) Name() string { return SubprotocolJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (jsonCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, &ProtocolError{Err: ErrMalformed}
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return env.message()
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return SubprotocolMsgPack }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&env)
}

func (msgpackCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, &ProtocolError{Err: ErrMalformed}
	}
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return env.message()
}
