package index

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a content hash of the index: vocabulary, postings and doc set.
// Two indexes built from the same corpus have equal digests.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Digest hashes terms and postings in sorted order.
func (idx *Index) Digest() Digest {
	h := blake3.New()
	var scratch [binary.MaxVarintLen64]byte

	writeString := func(s string) {
		n := binary.PutUvarint(scratch[:], uint64(len(s)))
		h.Write(scratch[:n])
		h.Write([]byte(s))
	}
	writeUint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		h.Write(scratch[:n])
	}

	writeUint(uint64(len(idx.docIDs)))
	for _, id := range idx.docIDs {
		writeString(id)
	}
	for _, term := range idx.Terms() {
		writeString(term)
		postings := idx.terms[term].postings
		writeUint(uint64(len(postings)))
		for _, p := range postings {
			writeUint(uint64(p.DocNum))
			writeUint(uint64(p.Frequency))
		}
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
