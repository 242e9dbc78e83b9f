package wallet

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // registers the "bdb" (bbolt) driver
)

var (
	bucketUtxos     = []byte("utxos")
	bucketAddresses = []byte("addresses")
	bucketMeta      = []byte("meta")

	metaKeyExternalIndex = []byte("next-external-index")
	metaKeyInternalIndex = []byte("next-internal-index")
	metaKeySyncHeight    = []byte("sync-height")
)

// Store is the wallet's persistent KV layer: tracked UTXOs, watched
// addresses, and sync bookkeeping. It is a thin domain layer over
// walletdb.DB, the same storage abstraction the teacher codebase uses for
// its own wallet backend, backed here by the bdb (bbolt) driver.
type Store struct {
	db walletdb.DB
}

// OpenStore opens (creating if needed) a bdb-backed walletdb database at
// path.
func OpenStore(path string) (*Store, error) {
	db, err := walletdb.Create("bdb", path, true, 60*time.Second)
	if err != nil {
		return nil, wrap(err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		for _, b := range [][]byte{bucketUtxos, bucketAddresses, bucketMeta} {
			if _, err := tx.CreateTopLevelBucket(b); err != nil {
				return err
			}
		}
		return nil
	}, func() {})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UTXORecord is the persisted shape of a tracked unspent output.
type UTXORecord struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         int64  `json:"value"`
	PkScript      []byte `json:"pk_script"`
	Address       string `json:"address"`
	DerivationIdx uint32 `json:"derivation_index"`
	Chain         uint32 `json:"chain"` // ExternalChain or InternalChain
	Spent         bool   `json:"spent"`
}

func utxoKey(txid string, vout uint32) []byte {
	key := make([]byte, len(txid)+4)
	copy(key, txid)
	binary.BigEndian.PutUint32(key[len(txid):], vout)
	return key
}

// PutUTXO inserts or replaces a tracked UTXO record.
func (s *Store) PutUTXO(u UTXORecord) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return wrap(err)
	}
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(bucketUtxos)
		return b.Put(utxoKey(u.TxID, u.Vout), raw)
	}, func() {})
}

// MarkUTXOSpent flags a tracked UTXO as spent, so it is excluded from
// future coin selection and balance totals.
func (s *Store) MarkUTXOSpent(txid string, vout uint32) error {
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(bucketUtxos)
		raw := b.Get(utxoKey(txid, vout))
		if raw == nil {
			return nil
		}
		var u UTXORecord
		if err := json.Unmarshal(raw, &u); err != nil {
			return err
		}
		u.Spent = true
		updated, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return b.Put(utxoKey(txid, vout), updated)
	}, func() {})
}

// ListUnspent returns every tracked UTXO not marked spent.
func (s *Store) ListUnspent() ([]UTXORecord, error) {
	var out []UTXORecord
	err := s.db.View(func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(bucketUtxos)
		return b.ForEach(func(_, v []byte) error {
			var u UTXORecord
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			if !u.Spent {
				out = append(out, u)
			}
			return nil
		})
	}, func() {})
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

// Balance sums the value of every unspent tracked UTXO, in satoshis.
func (s *Store) Balance() (int64, error) {
	utxos, err := s.ListUnspent()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total, nil
}

// NextIndex returns and atomically increments the next unused derivation
// index for the given chain (ExternalChain or InternalChain).
func (s *Store) NextIndex(chain uint32) (uint32, error) {
	key := metaKeyExternalIndex
	if chain == InternalChain {
		key = metaKeyInternalIndex
	}

	var idx uint32
	err := s.db.Update(func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(bucketMeta)
		raw := b.Get(key)
		if raw != nil {
			idx = binary.BigEndian.Uint32(raw)
		}
		next := make([]byte, 4)
		binary.BigEndian.PutUint32(next, idx+1)
		return b.Put(key, next)
	}, func() {})
	if err != nil {
		return 0, wrap(err)
	}
	return idx, nil
}

// PeekNextIndex returns the next unused derivation index for the given
// chain without advancing it, for LastUnused address queries that must be
// idempotent across repeated calls.
func (s *Store) PeekNextIndex(chain uint32) (uint32, error) {
	key := metaKeyExternalIndex
	if chain == InternalChain {
		key = metaKeyInternalIndex
	}

	var idx uint32
	err := s.db.View(func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(bucketMeta)
		raw := b.Get(key)
		if raw != nil {
			idx = binary.BigEndian.Uint32(raw)
		}
		return nil
	}, func() {})
	if err != nil {
		return 0, wrap(err)
	}
	return idx, nil
}

// SetSyncHeight persists the last block height observed during sync.
func (s *Store) SetSyncHeight(height int32) error {
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(bucketMeta)
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(height))
		return b.Put(metaKeySyncHeight, buf)
	}, func() {})
}

// SyncHeight returns the last persisted sync height, or 0 if never set.
func (s *Store) SyncHeight() (int32, error) {
	var height int32
	err := s.db.View(func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(bucketMeta)
		raw := b.Get(metaKeySyncHeight)
		if raw != nil {
			height = int32(binary.BigEndian.Uint32(raw))
		}
		return nil
	}, func() {})
	if err != nil {
		return 0, wrap(err)
	}
	return height, nil
}

// WatchAddress records that address (rendered string form) at chain/index
// should be included in future indexer scans.
func (s *Store) WatchAddress(address string, chain, index uint32) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint32(raw[:4], chain)
	binary.BigEndian.PutUint32(raw[4:], index)
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(bucketAddresses)
		return b.Put([]byte(address), raw)
	}, func() {})
}

// WatchedAddresses returns every address previously recorded via
// WatchAddress.
func (s *Store) WatchedAddresses() ([]string, error) {
	var out []string
	err := s.db.View(func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(bucketAddresses)
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	}, func() {})
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}
