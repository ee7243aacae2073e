package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the codec's content-subtype. Clients select it with
// grpc.CallContentSubtype(Name); the server is forced onto it regardless.
const Name = "json"

// jsonCodec frames the wire structs as JSON inside gRPC messages. The
// service surface is defined by hand, so there are no proto descriptors to
// marshal with.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
