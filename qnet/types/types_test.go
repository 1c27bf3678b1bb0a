package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

func TestTransactionSignAndVerify(t *testing.T) {
	pub, priv, err := crypto.ClassicalGenerateKey()
	require.NoError(t, err)

	tx := &Transaction{
		From:      "alice",
		To:        "bob",
		Amount:    100,
		Nonce:     1,
		GasPrice:  5,
		GasLimit:  21000,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		TxType:    TxTransfer,
	}
	require.NoError(t, tx.Sign(priv))
	require.True(t, tx.VerifySignature())
	require.Equal(t, []byte(pub), tx.PublicKey)
}

func TestTransactionVerifyRejectsTamper(t *testing.T) {
	_, priv, err := crypto.ClassicalGenerateKey()
	require.NoError(t, err)

	tx := &Transaction{From: "alice", To: "bob", Amount: 100, Nonce: 1, Timestamp: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, tx.Sign(priv))

	tx.Amount = 999
	require.False(t, tx.VerifySignature())
}

func TestTransactionSerializeRoundTrip(t *testing.T) {
	_, priv, err := crypto.ClassicalGenerateKey()
	require.NoError(t, err)

	tx := &Transaction{
		From: "alice", To: "bob", Amount: 42, Nonce: 7, GasPrice: 3, GasLimit: 1000,
		Timestamp: time.Unix(1700000001, 0).UTC(), TxType: TxContractCall, Data: []byte("payload"),
	}
	require.NoError(t, tx.Sign(priv))

	out, err := DeserializeTransaction(tx.Serialize())
	require.NoError(t, err)
	require.Equal(t, tx.Hash, out.Hash)
	require.Equal(t, tx.From, out.From)
	require.Equal(t, tx.To, out.To)
	require.Equal(t, tx.Amount, out.Amount)
	require.True(t, out.VerifySignature())
}

func TestBlockHashChangesWithContent(t *testing.T) {
	b1 := &Block{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), Producer: "node-1", PohCount: 4}
	clone := *b1
	clone.Height = 2
	b2 := &clone

	require.NotEqual(t, b1.Hash(), b2.Hash())
}

func TestBlockHashExcludesSignature(t *testing.T) {
	b1 := &Block{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), Producer: "node-1"}
	b2 := &Block{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), Producer: "node-1"}
	b2.Signature.Ed25519Sig = []byte("different-signature-bytes-here!")

	require.Equal(t, b1.Hash(), b2.Hash())
}

func TestPreviousHashLinking(t *testing.T) {
	prev := &Block{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), Producer: "node-1"}
	next := &Block{Height: 2, Timestamp: time.Unix(1700000001, 0).UTC(), PreviousHash: PreviousHashOf(prev), Producer: "node-2"}

	require.Equal(t, prev.Hash(), next.PreviousHash)
}

func TestConsensusProofEntropySeedDeterministic(t *testing.T) {
	p := ConsensusProof{Reveals: []RevealEntry{
		{NodeID: "node-b", Value: [32]byte{2}},
		{NodeID: "node-a", Value: [32]byte{1}},
	}}
	p.SortReveals()
	require.Equal(t, ids.NodeID("node-a"), p.Reveals[0].NodeID)

	seed1 := p.EntropySeed()
	p2 := ConsensusProof{Reveals: []RevealEntry{
		{NodeID: "node-a", Value: [32]byte{1}},
		{NodeID: "node-b", Value: [32]byte{2}},
	}}
	p2.SortReveals()
	seed2 := p2.EntropySeed()
	require.Equal(t, seed1, seed2)
}

func TestMicroRangeWindowSize(t *testing.T) {
	r := MicroRange{Lo: 91, Hi: 180}
	require.Equal(t, uint64(90), r.WindowSize())
}

func TestMacroblockHashExcludesSignature(t *testing.T) {
	m1 := &Macroblock{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), MicroRange: MicroRange{Lo: 1, Hi: 90}}
	m2 := &Macroblock{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), MicroRange: MicroRange{Lo: 1, Hi: 90}}
	m2.Signature.Ed25519Sig = []byte("x")

	require.Equal(t, m1.Hash(), m2.Hash())
}

func TestMacroblockHashChangesWithRange(t *testing.T) {
	m1 := &Macroblock{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), MicroRange: MicroRange{Lo: 1, Hi: 90}}
	m2 := &Macroblock{Height: 1, Timestamp: time.Unix(1700000000, 0).UTC(), MicroRange: MicroRange{Lo: 91, Hi: 180}}

	require.NotEqual(t, m1.Hash(), m2.Hash())
}
