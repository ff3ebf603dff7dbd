package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/poiesic/textguard/core"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// maxFrameSize bounds a single record frame when reading.
const maxFrameSize = 64 << 20

var snapshotMagic = []byte("TGSNAP")

// BandKeyer derives band keys from a signature. *lsh.Index satisfies it.
type BandKeyer interface {
	BandKeys(sig core.Signature) ([]uint64, error)
}

// WriteSnapshot streams records and their band keys to w.
//
// Layout: magic, uvarint version, uvarint-framed params, uvarint record
// count, then one uvarint-framed MUS record (document followed by its band
// keys) per document, and finally the little-endian xxhash64 of every frame
// payload. Sentinel-signature records are written with no band keys.
func WriteSnapshot(w io.Writer, params core.IndexParams, records []*core.DocumentRecord, keyer BandKeyer) error {
	bw := bufio.NewWriter(w)
	digest := xxhash.New()

	if _, err := bw.Write(snapshotMagic); err != nil {
		return err
	}
	if err := writeUvarint(bw, SnapshotVersion); err != nil {
		return err
	}
	if err := writeFrame(bw, nil, MarshalParams(params)); err != nil {
		return err
	}
	if err := writeUvarint(bw, uint64(len(records))); err != nil {
		return err
	}

	for _, rec := range records {
		var keys []uint64
		if !rec.Signature.IsEmpty() {
			var err error
			keys, err = keyer.BandKeys(rec.Signature)
			if err != nil {
				return fmt.Errorf("band keys for %s: %w", rec.Hash, err)
			}
		}
		size := core.DocumentRecordMUS.Size(*rec) + core.SignatureMUS.Size(keys)
		payload := make([]byte, size)
		n := core.DocumentRecordMUS.Marshal(*rec, payload)
		core.SignatureMUS.Marshal(keys, payload[n:])
		if err := writeFrame(bw, digest, payload); err != nil {
			return err
		}
	}

	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], digest.Sum64())
	if _, err := bw.Write(trailer[:]); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot. The stored
// parameters must equal want; every record's band keys are recomputed with
// keyer and compared with the stored ones.
func ReadSnapshot(r io.Reader, want core.IndexParams, keyer BandKeyer) ([]*core.DocumentRecord, error) {
	br := bufio.NewReader(r)
	digest := xxhash.New()

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("%w: reading magic: %w", ErrSnapshotCorrupt, err)
	}
	if !bytes.Equal(magic, snapshotMagic) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrSnapshotCorrupt, magic)
	}
	version, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading version: %w", ErrSnapshotCorrupt, err)
	}
	if version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, version, SnapshotVersion)
	}

	raw, err := readFrame(br, nil)
	if err != nil {
		return nil, err
	}
	params, err := UnmarshalParams(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	if err := params.Check(want); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotMismatch, err)
	}

	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading count: %w", ErrSnapshotCorrupt, err)
	}

	records := make([]*core.DocumentRecord, 0, min(count, 1<<16))
	for i := uint64(0); i < count; i++ {
		payload, err := readFrame(br, digest)
		if err != nil {
			return nil, err
		}
		rec, n, err := core.DocumentRecordMUS.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrSnapshotCorrupt, i, err)
		}
		stored, _, err := core.SignatureMUS.Unmarshal(payload[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: band keys of record %d: %w", ErrSnapshotCorrupt, i, err)
		}
		if err := verifyBandKeys(&rec, stored, keyer); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}

	var trailer [8]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return nil, fmt.Errorf("%w: reading checksum: %w", ErrSnapshotCorrupt, err)
	}
	if binary.LittleEndian.Uint64(trailer[:]) != digest.Sum64() {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}
	return records, nil
}

func verifyBandKeys(rec *core.DocumentRecord, stored []uint64, keyer BandKeyer) error {
	if rec.Signature.IsEmpty() {
		if len(stored) != 0 {
			return fmt.Errorf("%w: sentinel record %s carries band keys", ErrSnapshotCorrupt, rec.Hash)
		}
		return nil
	}
	keys, err := keyer.BandKeys(rec.Signature)
	if err != nil {
		return fmt.Errorf("%w: record %s: %w", ErrSnapshotCorrupt, rec.Hash, err)
	}
	if !slices.Equal(keys, stored) {
		return fmt.Errorf("%w: band keys of %s do not match its signature", ErrSnapshotCorrupt, rec.Hash)
	}
	return nil
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeFrame(w io.Writer, digest *xxhash.Digest, payload []byte) error {
	if err := writeUvarint(w, uint64(len(payload))); err != nil {
		return err
	}
	if digest != nil {
		_, _ = digest.Write(payload)
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r *bufio.Reader, digest *xxhash.Digest) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading frame size: %w", ErrSnapshotCorrupt, truncated(err))
	}
	if size > maxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrSnapshotCorrupt, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading frame: %w", ErrSnapshotCorrupt, truncated(err))
	}
	if digest != nil {
		_, _ = digest.Write(payload)
	}
	return payload, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedData
	}
	return err
}
