package common

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/io"
)

// GetUint64 reads big-endian uint64 stored by the key. Missing key is
// treated as zero.
func GetUint64(s *storage.MemCachedStore, key []byte) (uint64, error) {
	data, err := s.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid integer item length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// PutUint64 stores v as big-endian uint64 by the key. Zero values are
// deleted from the storage.
func PutUint64(s *storage.MemCachedStore, key []byte, v uint64) {
	if v == 0 {
		s.Delete(key)
		return
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	s.Put(key, buf[:])
}

// GetSerialized decodes the item stored by the key into v. It returns
// false if there is no such item.
func GetSerialized(s *storage.MemCachedStore, key []byte, v io.Serializable) (bool, error) {
	data, err := s.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	r := io.NewBinReaderFromBuf(data)
	v.DecodeBinary(r)
	if r.Err != nil {
		return false, fmt.Errorf("decode item: %w", r.Err)
	}
	return true, nil
}

// SetSerialized serializes data and puts it into the storage.
func SetSerialized(s *storage.MemCachedStore, key []byte, v io.Serializable) error {
	w := io.NewBufBinWriter()
	v.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return fmt.Errorf("encode item: %w", w.Err)
	}
	s.Put(key, w.Bytes())
	return nil
}

// Key concatenates single-byte prefix with the rest of the key parts.
func Key(prefix byte, parts ...[]byte) []byte {
	n := 1
	for i := range parts {
		n += len(parts[i])
	}
	k := make([]byte, 0, n)
	k = append(k, prefix)
	for i := range parts {
		k = append(k, parts[i]...)
	}
	return k
}

// Uint64Key returns big-endian representation of v to be used in keys, so
// that items are iterated in numeric order.
func Uint64Key(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
