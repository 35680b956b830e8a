// Package abi holds the low-level helpers shared by the encoder and decoder:
// alignment, overflow-checked arithmetic, size limits and numeric coercion
// of dynamic values.
//
// This package is internal to the transcoder.
package abi
