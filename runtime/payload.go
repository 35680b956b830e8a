package runtime

import (
	"bytes"
	"encoding/base64"

	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/wasm"
)

// DecodePayload returns the guest binary carried by payload: raw bytes,
// base64, or base64 of base64. The second layer is unwrapped only when the
// first decode does not already start with the wasm magic.
func DecodePayload(payload []byte) ([]byte, error) {
	if wasm.IsModule(payload) {
		return payload, nil
	}
	first, err := decodeBase64(bytes.TrimSpace(payload))
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("payload is neither a wasm module nor base64").
			Cause(err).
			Build()
	}
	if wasm.IsModule(first) {
		return first, nil
	}
	second, err := decodeBase64(bytes.TrimSpace(first))
	if err == nil && wasm.IsModule(second) {
		return second, nil
	}
	return nil, errors.InvalidInput(errors.PhaseLoad, "decoded payload does not start with the wasm magic")
}

func decodeBase64(data []byte) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(string(data))
	if err == nil {
		return out, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(string(data)); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
