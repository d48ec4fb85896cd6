// Package envelope seals files for upload and opens them after download.
// It is a pure transform: no I/O, no storage, no network.
package envelope

import (
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
)

// OpaqueType is the MIME type every sealed file carries.
const OpaqueType = "application/octet-stream"

type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Metadata is everything besides the key needed to open a sealed file.
type Metadata struct {
	IV           crypto.IV `json:"iv"`
	OriginalName string    `json:"original_name"`
	OriginalType string    `json:"original_type"`
}

type Sealed struct {
	File     File
	Metadata Metadata
}

// Seal encrypts f under a fresh key. The sealed file keeps f's name and is
// typed as OpaqueType. The key is returned on its own and is never part of
// the metadata.
func Seal(f File) (Sealed, []byte, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Sealed{}, nil, err
	}

	ciphertext, iv, err := crypto.Encrypt(f.Data, key)
	if err != nil {
		return Sealed{}, nil, err
	}

	return Sealed{
		File: File{
			Name:     f.Name,
			MimeType: OpaqueType,
			Data:     ciphertext,
		},
		Metadata: Metadata{
			IV:           iv,
			OriginalName: f.Name,
			OriginalType: f.MimeType,
		},
	}, key, nil
}

// Open decrypts a sealed file and restores its original name and type.
func Open(encrypted File, key []byte, md Metadata) (File, error) {
	plaintext, err := crypto.Decrypt(encrypted.Data, key, md.IV)
	if err != nil {
		return File{}, err
	}

	return File{
		Name:     md.OriginalName,
		MimeType: md.OriginalType,
		Data:     plaintext,
	}, nil
}
