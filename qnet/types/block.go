package types

import (
	"bytes"
	"time"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/cert"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// DecodeBlockCanonical reverses CanonicalBytes. The returned Block has a
// zero-value Signature: canonical bytes never include it (spec.md §6), so
// callers that need the signature must carry it alongside the raw encoding
// they originally received (e.g. the wire envelope that delivered the
// block).
func DecodeBlockCanonical(data []byte) (*Block, error) {
	r := bytes.NewReader(data)
	b := &Block{}

	height, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	ts, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	prevHashBytes, err := readFixed(r, 32)
	if err != nil {
		return nil, err
	}

	txCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	txs := make([]Transaction, 0, txCount)
	for i := uint32(0); i < txCount; i++ {
		raw, err := readLP(r)
		if err != nil {
			return nil, err
		}
		tx, err := DeserializeTransaction(raw)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}

	producer, err := readLP(r)
	if err != nil {
		return nil, err
	}
	pohHashBytes, err := readFixed(r, 64)
	if err != nil {
		return nil, err
	}
	pohCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	b.Height = height
	b.Timestamp = time.Unix(ts, 0).UTC()
	copy(b.PreviousHash[:], prevHashBytes)
	b.Transactions = txs
	b.Producer = ids.NodeID(producer)
	copy(b.PohHash[:], pohHashBytes)
	b.PohCount = pohCount
	return b, nil
}

// Block is a microblock: the 1-second-cadence unit of chain extension
// (spec.md §3 "Block (Microblock)").
type Block struct {
	Height       uint64
	Timestamp    time.Time
	PreviousHash ids.ID
	Transactions []Transaction
	Producer     ids.NodeID
	PohHash      [64]byte
	PohCount     uint64
	Signature    cert.CompactSignature
}

// CanonicalBytes serializes every field in spec.md §3 order except
// Signature (spec.md §6 "Canonical block hash ... all fields except
// signature"). This is what H_secure hashes to produce the canonical block
// hash used everywhere a block identity is needed.
func (b *Block) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeUint64(&buf, b.Height)
	writeInt64(&buf, b.Timestamp.Unix())
	writeFixed(&buf, b.PreviousHash.Bytes())

	writeUint32(&buf, uint32(len(b.Transactions)))
	for i := range b.Transactions {
		writeLP(&buf, b.Transactions[i].Serialize())
	}

	writeLP(&buf, []byte(b.Producer))
	writeFixed(&buf, b.PohHash[:])
	writeUint64(&buf, b.PohCount)
	return buf.Bytes()
}

// Hash computes the canonical block hash (spec.md §6).
func (b *Block) Hash() ids.ID {
	return ids.ID(crypto.HSecure(b.CanonicalBytes()))
}

// PreviousHashOf computes H(previous) for linking the next block (spec.md
// §3 invariant "previous_hash = H(previous)").
func PreviousHashOf(previous *Block) ids.ID {
	return previous.Hash()
}
