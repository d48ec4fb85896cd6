// Package crypto holds the key and file primitives of the record vault:
// hex key codec, AES-256-GCM file cipher, the JSON IV wire form, and wrapping
// of record keys under the server master key for storage at rest.
package crypto
