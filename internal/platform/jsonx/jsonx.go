package jsonx

import "github.com/bytedance/sonic"

// Thin wrapper so option payloads and API bodies share one JSON codec.
var (
	Marshal       = sonic.Marshal
	MarshalIndent = sonic.MarshalIndent
	Unmarshal     = sonic.Unmarshal
)
