// Package types holds the core data model of spec.md §3: transactions,
// microblocks, and macroblocks, plus their canonical byte serialization
// (spec.md §6 "Canonical block hash").
//
// The length-prefixed, little-endian wire-struct style mirrors the
// teacher's qzmq/messages.go hand-rolled (de)serializers; spec.md §6
// explicitly calls for little-endian fixed-width integers, which is the one
// place this core diverges from the teacher's own (big-endian) convention —
// the wire format is spec-normative, not teacher-inherited.
package types

import (
	"bytes"
	"encoding/binary"
	"io"
)

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	writeUint64(buf, uint64(v))
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeByte(buf *bytes.Buffer, v byte) {
	buf.WriteByte(v)
}

func writeFixed(buf *bytes.Buffer, b []byte) {
	buf.Write(b)
}

func writeLP(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readByte(r *bytes.Reader) (byte, error) {
	return r.ReadByte()
}

func readFixed(r *bytes.Reader, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readLP(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	return readFixed(r, int(n))
}
