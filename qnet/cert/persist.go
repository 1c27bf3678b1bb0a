package cert

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// serialize produces a flat, length-prefixed encoding of a Certificate for
// disk persistence, following the teacher's qzmq/messages.go binary.Write
// wire-struct pattern.
func serialize(c *Certificate) []byte {
	var buf bytes.Buffer
	writeLP(&buf, []byte(c.NodeID))
	writeLP(&buf, c.Ed25519PublicKey)
	writeLP(&buf, c.DilithiumPublicKey.Bytes())
	writeLP(&buf, c.DilithiumSigOfEd25519)
	writeLP(&buf, []byte(c.SerialNumber))
	_ = binary.Write(&buf, binary.LittleEndian, c.IssuedAt.Unix())
	_ = binary.Write(&buf, binary.LittleEndian, c.ExpiresAt.Unix())
	return buf.Bytes()
}

func deserialize(data []byte) (*Certificate, error) {
	r := bytes.NewReader(data)
	nodeID, err := readLP(r)
	if err != nil {
		return nil, err
	}
	edPub, err := readLP(r)
	if err != nil {
		return nil, err
	}
	pqPubBytes, err := readLP(r)
	if err != nil {
		return nil, err
	}
	dilSig, err := readLP(r)
	if err != nil {
		return nil, err
	}
	serial, err := readLP(r)
	if err != nil {
		return nil, err
	}
	var issuedAt, expiresAt int64
	if err := binary.Read(r, binary.LittleEndian, &issuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &expiresAt); err != nil {
		return nil, err
	}

	pqPub, err := crypto.PQPublicKeyFromBytes(pqPubBytes)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		NodeID:                ids.NodeID(nodeID),
		Ed25519PublicKey:      ed25519.PublicKey(edPub),
		DilithiumPublicKey:    pqPub,
		DilithiumSigOfEd25519: dilSig,
		SerialNumber:          string(serial),
		IssuedAt:              time.Unix(issuedAt, 0).UTC(),
		ExpiresAt:             time.Unix(expiresAt, 0).UTC(),
	}, nil
}

func writeLP(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readLP(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompressForDisk LZ4-compresses a certificate's serialized bytes, matching
// spec.md §3/§4.3 "Entries persisted to disk up to ~2000; compressed
// (LZ4-equivalent) with ~70% reduction."
func CompressForDisk(c *Certificate) ([]byte, error) {
	raw := serialize(c)
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("cert: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cert: lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressFromDisk reverses CompressForDisk.
func DecompressFromDisk(compressed []byte) (*Certificate, error) {
	r := lz4.NewReader(bytes.NewReader(compressed))
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cert: lz4 decompress: %w", err)
	}
	return deserialize(raw)
}
