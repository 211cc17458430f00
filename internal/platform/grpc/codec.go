package grpc

import (
	"fmt"

	"github.com/louisbranch/batchmessaging/internal/platform/codec"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype the batch service speaks
// (application/grpc+cbor).
const CodecName = "cbor"

func init() {
	encoding.RegisterCodec(cborCodec{})
}

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal %T: %w", v, err)
	}
	return data, nil
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor unmarshal %T: %w", v, err)
	}
	return nil
}

func (cborCodec) Name() string {
	return CodecName
}

// CBORCallOption selects the CBOR codec for a client call.
func CBORCallOption() gogrpc.CallOption {
	return gogrpc.CallContentSubtype(CodecName)
}
