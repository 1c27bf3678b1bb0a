package types

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// TxType tags a Transaction's variant (spec.md §3 "tx_type (tagged
// variant)").
type TxType byte

const (
	TxTransfer TxType = iota
	TxNodeActivation
	TxRewardDistribution
	TxContractDeploy
	TxContractCall
)

// Transaction is a single client-submitted operation (spec.md §3
// "Transaction"). Execution semantics beyond ordering and signature checks
// are out of scope (spec.md §1 Non-goals); this core only orders, filters,
// and hashes transactions.
type Transaction struct {
	Hash      ids.ID
	From      string
	To        string // empty means none (optional)
	Amount    uint64
	Nonce     uint64
	GasPrice  uint64
	GasLimit  uint64
	Timestamp time.Time
	TxType    TxType
	Data      []byte // optional
	Signature []byte // 64B, client Ed25519-equivalent
	PublicKey []byte // 32B
}

// canonicalBytesNoSig serializes every field in spec.md §3 order except
// Hash and Signature (Hash is derived from this payload; Signature is
// explicitly excluded from canonical bytes per spec.md §6).
func (tx *Transaction) canonicalBytesNoSig() []byte {
	var buf bytes.Buffer
	writeLP(&buf, []byte(tx.From))
	writeLP(&buf, []byte(tx.To))
	writeUint64(&buf, tx.Amount)
	writeUint64(&buf, tx.Nonce)
	writeUint64(&buf, tx.GasPrice)
	writeUint64(&buf, tx.GasLimit)
	writeInt64(&buf, tx.Timestamp.Unix())
	writeByte(&buf, byte(tx.TxType))
	writeLP(&buf, tx.Data)
	writeLP(&buf, tx.PublicKey)
	return buf.Bytes()
}

// ComputeHash derives the deterministic transaction hash over all
// non-signature fields (spec.md §3 "hash is deterministic over all
// non-signature fields").
func (tx *Transaction) ComputeHash() ids.ID {
	return ids.ID(crypto.HSecure(tx.canonicalBytesNoSig()))
}

// VerifySignature checks the client's classical signature against the
// embedded public key over the transaction's canonical payload (spec.md §3
// "signature verifies against public_key").
func (tx *Transaction) VerifySignature() bool {
	if len(tx.PublicKey) != ed25519.PublicKeySize || len(tx.Signature) != ed25519.SignatureSize {
		return false
	}
	return crypto.ClassicalVerify(tx.PublicKey, tx.canonicalBytesNoSig(), tx.Signature)
}

// Sign computes the hash, signs the canonical payload with sk, and fills in
// Hash/Signature/PublicKey. Used by tests and reference tooling, not by the
// validator path (which only ever verifies).
func (tx *Transaction) Sign(sk ed25519.PrivateKey) error {
	pub, ok := sk.Public().(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("types: invalid ed25519 private key")
	}
	tx.PublicKey = pub
	payload := tx.canonicalBytesNoSig()
	sig, err := crypto.ClassicalSign(sk, payload)
	if err != nil {
		return err
	}
	tx.Signature = sig
	tx.Hash = ids.ID(crypto.HSecure(payload))
	return nil
}

// Serialize produces the full wire encoding of tx, including Signature.
func (tx *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(tx.canonicalBytesNoSig())
	writeLP(&buf, tx.Signature)
	return buf.Bytes()
}

// DeserializeTransaction reverses Serialize, recomputing Hash.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx := &Transaction{}

	from, err := readLP(r)
	if err != nil {
		return nil, err
	}
	to, err := readLP(r)
	if err != nil {
		return nil, err
	}
	amount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	nonce, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	gasPrice, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	gasLimit, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	ts, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	txType, err := readByte(r)
	if err != nil {
		return nil, err
	}
	data2, err := readLP(r)
	if err != nil {
		return nil, err
	}
	pubKey, err := readLP(r)
	if err != nil {
		return nil, err
	}
	sig, err := readLP(r)
	if err != nil {
		return nil, err
	}

	tx.From = string(from)
	tx.To = string(to)
	tx.Amount = amount
	tx.Nonce = nonce
	tx.GasPrice = gasPrice
	tx.GasLimit = gasLimit
	tx.Timestamp = time.Unix(ts, 0).UTC()
	tx.TxType = TxType(txType)
	tx.Data = data2
	tx.PublicKey = pubKey
	tx.Signature = sig
	tx.Hash = tx.ComputeHash()
	return tx, nil
}
