// Package auditindex maintains a BoltDB secondary index over the JSONL
// audit log: given a request_id or session_id, find the byte offset and
// length of the matching line(s) without scanning the whole file.
//
// The JSONL file remains the durable source of truth; this index is purely
// a lookup accelerator and is safe to delete. Nothing here rebuilds it from
// the log: Open creates a fresh, empty index, and llmosd-auditctl falls
// back to scanning the log for ids the index has no entry for.
//
// Adapted from the teacher's internal/storage/bolt.go ledger-bucket
// design: two buckets, a schema_version record in a meta bucket, and keys
// built so range scans come back in the right order.
package auditindex

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const schemaVersion = 1

var (
	bucketByRequestID = []byte("by_request_id")
	bucketBySessionID = []byte("by_session_id")
	bucketMeta        = []byte("meta")
	keySchemaVersion  = []byte("schema_version")
)

// Location is the byte range of one audit record within the JSONL file.
type Location struct {
	Offset int64
	Length int
}

// Index wraps an open BoltDB handle with the two lookup buckets the audit
// writer and llmosd-auditctl both use.
type Index struct {
	db *bolt.DB
}

// Open creates path if it doesn't exist, provisions its buckets, and
// checks (or writes) the schema_version record.
func Open(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("auditindex: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketByRequestID, bucketBySessionID, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		existing := meta.Get(keySchemaVersion)
		if existing == nil {
			return meta.Put(keySchemaVersion, encodeUint32(schemaVersion))
		}
		got := binary.BigEndian.Uint32(existing)
		if got != schemaVersion {
			return fmt.Errorf("schema_version mismatch: index has %d, binary expects %d", got, schemaVersion)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

func (idx *Index) Close() error {
	return idx.db.Close()
}

// Append records the location of one audit record, keyed for lookup by
// both request_id and session_id (when present).
func (idx *Index) Append(requestID, sessionID string, offset int64, length int) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		value := encodeLocation(offset, length)

		if err := tx.Bucket(bucketByRequestID).Put([]byte(requestID), value); err != nil {
			return err
		}
		if sessionID != "" {
			key := sessionKey(sessionID, offset)
			if err := tx.Bucket(bucketBySessionID).Put(key, []byte(requestID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LookupByRequestID returns the location of the audit record for
// requestID, or ok=false if none is indexed.
func (idx *Index) LookupByRequestID(requestID string) (loc Location, ok bool, err error) {
	err = idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketByRequestID).Get([]byte(requestID))
		if v == nil {
			return nil
		}
		loc, ok = decodeLocation(v), true
		return nil
	})
	return loc, ok, err
}

// LookupBySessionID returns every request_id recorded under sessionID, in
// the order they were appended.
func (idx *Index) LookupBySessionID(sessionID string) ([]string, error) {
	var requestIDs []string
	prefix := []byte(sessionID + "\x00")
	err := idx.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBySessionID).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			requestIDs = append(requestIDs, string(v))
		}
		return nil
	})
	return requestIDs, err
}

func sessionKey(sessionID string, offset int64) []byte {
	key := make([]byte, 0, len(sessionID)+1+8)
	key = append(key, []byte(sessionID)...)
	key = append(key, 0)
	var offBuf [8]byte
	binary.BigEndian.PutUint64(offBuf[:], uint64(offset))
	return append(key, offBuf[:]...)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func encodeLocation(offset int64, length int) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[0:8], uint64(offset))
	binary.BigEndian.PutUint32(buf[8:12], uint32(length))
	return buf
}

func decodeLocation(buf []byte) Location {
	return Location{
		Offset: int64(binary.BigEndian.Uint64(buf[0:8])),
		Length: int(binary.BigEndian.Uint32(buf[8:12])),
	}
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}
