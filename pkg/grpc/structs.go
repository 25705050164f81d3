package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeStruct converts any JSON-encodable object into a Struct.
func EncodeStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	st := new(structpb.Struct)
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	return st, nil
}

// DecodeStruct fills v from st using v's JSON tags. A nil st leaves v untouched.
func DecodeStruct(st *structpb.Struct, v any) error {
	if st == nil {
		return nil
	}
	b, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}
