package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"curio/native/market"
	"curio/native/split"
)

// schemaVersion is bumped on incompatible layout changes; migration happens
// explicitly at startup rather than through append-only field tricks.
const schemaVersion = 1

var (
	errTxnOpen   = errors.New("storage: transaction already open")
	errNoTxn     = errors.New("storage: no open transaction")
	ErrBadSchema = errors.New("storage: unsupported schema version")
)

var (
	keySchema      = []byte("schema/version")
	prefListing    = "market/listing/"
	prefPointer    = "market/pointer/"
	keyIndexLen    = []byte("market/active/len")
	prefIndex      = "market/active/"
	prefPosition   = "market/pos/"
	prefPayToken   = "market/paytoken/"
	keyFeeConfig   = []byte("market/fee")
	prefSplitCfg   = "split/config/"
	prefSplitLvl   = "split/levels/"
	prefClaimBal   = "claim/balance/"
	prefBeneficial = "claim/beneficiary/"
	prefReferrer   = "referral/"
)

type overlayEntry struct {
	value   []byte
	deleted bool
}

// Store persists all engine state through a Database and provides overlay
// transactions so the node can make each public operation all-or-nothing:
// writes buffer in the overlay and reach the database only on Commit.
type Store struct {
	db      Database
	overlay map[string]overlayEntry
	inTxn   bool
}

// NewStore wraps a database.
func NewStore(db Database) *Store {
	return &Store{db: db, overlay: make(map[string]overlayEntry)}
}

// EnsureSchema initialises or verifies the persisted schema version.
func (s *Store) EnsureSchema() error {
	raw, err := s.get(keySchema)
	if errors.Is(err, ErrNotFound) {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], schemaVersion)
		return s.put(keySchema, buf[:])
	}
	if err != nil {
		return err
	}
	if len(raw) != 8 || binary.BigEndian.Uint64(raw) != schemaVersion {
		return ErrBadSchema
	}
	return nil
}

// Begin opens an overlay transaction.
func (s *Store) Begin() error {
	if s.inTxn {
		return errTxnOpen
	}
	s.inTxn = true
	return nil
}

// Commit flushes the overlay to the database and closes the transaction.
func (s *Store) Commit() error {
	if !s.inTxn {
		return errNoTxn
	}
	for key, entry := range s.overlay {
		if entry.deleted {
			if err := s.db.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := s.db.Put([]byte(key), entry.value); err != nil {
			return err
		}
	}
	s.overlay = make(map[string]overlayEntry)
	s.inTxn = false
	return nil
}

// Revert discards the overlay and closes the transaction.
func (s *Store) Revert() {
	s.overlay = make(map[string]overlayEntry)
	s.inTxn = false
}

func (s *Store) get(key []byte) ([]byte, error) {
	if s.inTxn {
		if entry, ok := s.overlay[string(key)]; ok {
			if entry.deleted {
				return nil, ErrNotFound
			}
			return entry.value, nil
		}
	}
	return s.db.Get(key)
}

func (s *Store) has(key []byte) (bool, error) {
	if s.inTxn {
		if entry, ok := s.overlay[string(key)]; ok {
			return !entry.deleted, nil
		}
	}
	return s.db.Has(key)
}

func (s *Store) put(key, value []byte) error {
	if s.inTxn {
		s.overlay[string(key)] = overlayEntry{value: append([]byte(nil), value...)}
		return nil
	}
	return s.db.Put(key, value)
}

func (s *Store) delete(key []byte) error {
	if s.inTxn {
		s.overlay[string(key)] = overlayEntry{deleted: true}
		return nil
	}
	return s.db.Delete(key)
}

func pairKey(prefix string, collection [20]byte, assetID uint64) []byte {
	key := make([]byte, 0, len(prefix)+28)
	key = append(key, prefix...)
	key = append(key, collection[:]...)
	var asset [8]byte
	binary.BigEndian.PutUint64(asset[:], assetID)
	return append(key, asset[:]...)
}

func idKey(prefix string, id [32]byte) []byte {
	key := make([]byte, 0, len(prefix)+32)
	key = append(key, prefix...)
	return append(key, id[:]...)
}

func addrKey(prefix string, addr [20]byte) []byte {
	key := make([]byte, 0, len(prefix)+20)
	key = append(key, prefix...)
	return append(key, addr[:]...)
}

func balanceKey(account, token [20]byte) []byte {
	key := make([]byte, 0, len(prefClaimBal)+40)
	key = append(key, prefClaimBal...)
	key = append(key, account[:]...)
	return append(key, token[:]...)
}

// --- market registry state ---

func (s *Store) ListingPut(l *market.Listing) error {
	if l == nil {
		return fmt.Errorf("storage: nil listing")
	}
	data, err := encodeListing(l)
	if err != nil {
		return err
	}
	return s.put(idKey(prefListing, l.ID), data)
}

func (s *Store) ListingGet(id [32]byte) (*market.Listing, bool, error) {
	data, err := s.get(idKey(prefListing, id))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	listing, err := decodeListing(id, data)
	if err != nil {
		return nil, false, err
	}
	return listing, true, nil
}

func (s *Store) ActivePointerSet(collection [20]byte, assetID uint64, id [32]byte) error {
	return s.put(pairKey(prefPointer, collection, assetID), id[:])
}

func (s *Store) ActivePointerGet(collection [20]byte, assetID uint64) ([32]byte, bool, error) {
	var id [32]byte
	data, err := s.get(pairKey(prefPointer, collection, assetID))
	if errors.Is(err, ErrNotFound) {
		return id, false, nil
	}
	if err != nil {
		return id, false, err
	}
	if len(data) != len(id) {
		return id, false, fmt.Errorf("storage: malformed active pointer")
	}
	copy(id[:], data)
	return id, true, nil
}

func (s *Store) ActivePointerClear(collection [20]byte, assetID uint64) error {
	return s.delete(pairKey(prefPointer, collection, assetID))
}

func (s *Store) ActiveIndexLen() (uint64, error) {
	data, err := s.get(keyIndexLen)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("storage: malformed index length")
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *Store) setActiveIndexLen(n uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return s.put(keyIndexLen, buf[:])
}

func indexKey(pos uint64) []byte {
	key := make([]byte, 0, len(prefIndex)+8)
	key = append(key, prefIndex...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pos)
	return append(key, buf[:]...)
}

func (s *Store) ActiveIndexGet(pos uint64) ([32]byte, error) {
	var id [32]byte
	data, err := s.get(indexKey(pos))
	if err != nil {
		return id, err
	}
	if len(data) != len(id) {
		return id, fmt.Errorf("storage: malformed index entry")
	}
	copy(id[:], data)
	return id, nil
}

func (s *Store) ActiveIndexSet(pos uint64, id [32]byte) error {
	length, err := s.ActiveIndexLen()
	if err != nil {
		return err
	}
	if pos >= length {
		return fmt.Errorf("storage: index position %d out of range", pos)
	}
	return s.put(indexKey(pos), id[:])
}

func (s *Store) ActiveIndexAppend(id [32]byte) error {
	length, err := s.ActiveIndexLen()
	if err != nil {
		return err
	}
	if err := s.put(indexKey(length), id[:]); err != nil {
		return err
	}
	return s.setActiveIndexLen(length + 1)
}

func (s *Store) ActiveIndexTruncate(n uint64) error {
	length, err := s.ActiveIndexLen()
	if err != nil {
		return err
	}
	if n > length {
		return fmt.Errorf("storage: cannot grow index via truncate")
	}
	for pos := n; pos < length; pos++ {
		if err := s.delete(indexKey(pos)); err != nil {
			return err
		}
	}
	return s.setActiveIndexLen(n)
}

func (s *Store) ActivePositionGet(id [32]byte) (uint64, bool, error) {
	data, err := s.get(idKey(prefPosition, id))
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("storage: malformed position entry")
	}
	return binary.BigEndian.Uint64(data), true, nil
}

func (s *Store) ActivePositionSet(id [32]byte, pos uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pos)
	return s.put(idKey(prefPosition, id), buf[:])
}

func (s *Store) ActivePositionClear(id [32]byte) error {
	return s.delete(idKey(prefPosition, id))
}

func (s *Store) PaymentTokenEnabled(token [20]byte) bool {
	ok, err := s.has(addrKey(prefPayToken, token))
	return err == nil && ok
}

// SetPaymentToken enables or disables a payment token.
func (s *Store) SetPaymentToken(token [20]byte, enabled bool) error {
	key := addrKey(prefPayToken, token)
	if enabled {
		return s.put(key, []byte{1})
	}
	return s.delete(key)
}

// PlatformFeePut persists a runtime platform fee update.
func (s *Store) PlatformFeePut(bps uint32, treasury [20]byte) error {
	record := make([]byte, 4+len(treasury))
	binary.BigEndian.PutUint32(record[:4], bps)
	copy(record[4:], treasury[:])
	return s.put(keyFeeConfig, record)
}

// PlatformFeeGet loads the persisted platform fee, if any.
func (s *Store) PlatformFeeGet() (uint32, [20]byte, bool, error) {
	var treasury [20]byte
	data, err := s.get(keyFeeConfig)
	if errors.Is(err, ErrNotFound) {
		return 0, treasury, false, nil
	}
	if err != nil {
		return 0, treasury, false, err
	}
	if len(data) != 4+len(treasury) {
		return 0, treasury, false, fmt.Errorf("storage: malformed fee record")
	}
	copy(treasury[:], data[4:])
	return binary.BigEndian.Uint32(data[:4]), treasury, true, nil
}

// --- split engine state ---

func (s *Store) SplitConfigGet(scope split.Scope) (*split.Config, bool, error) {
	data, err := s.get(idKey(prefSplitCfg, scope))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	cfg, err := decodeSplitConfig(data)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func (s *Store) SplitConfigPut(scope split.Scope, cfg *split.Config) error {
	if cfg == nil {
		return fmt.Errorf("storage: nil split config")
	}
	data, err := encodeSplitConfig(cfg)
	if err != nil {
		return err
	}
	return s.put(idKey(prefSplitCfg, scope), data)
}

func (s *Store) SplitLevelsGet(scope split.Scope) ([]uint32, error) {
	data, err := s.get(idKey(prefSplitLvl, scope))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var levels []uint32
	if err := rlp.DecodeBytes(data, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func (s *Store) SplitLevelsPut(scope split.Scope, levels []uint32) error {
	data, err := rlp.EncodeToBytes(levels)
	if err != nil {
		return err
	}
	return s.put(idKey(prefSplitLvl, scope), data)
}

// --- claim ledger state ---

func (s *Store) ClaimBalanceGet(account [20]byte, token [20]byte) (*big.Int, error) {
	data, err := s.get(balanceKey(account, token))
	if errors.Is(err, ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *Store) ClaimBalancePut(account [20]byte, token [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("storage: claim balance must be non-negative")
	}
	key := balanceKey(account, token)
	if amount.Sign() == 0 {
		return s.delete(key)
	}
	data, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return s.put(key, data)
}

func (s *Store) BeneficiaryGet(account [20]byte) ([20]byte, bool, error) {
	var beneficiary [20]byte
	data, err := s.get(addrKey(prefBeneficial, account))
	if errors.Is(err, ErrNotFound) {
		return beneficiary, false, nil
	}
	if err != nil {
		return beneficiary, false, err
	}
	if len(data) != len(beneficiary) {
		return beneficiary, false, fmt.Errorf("storage: malformed beneficiary entry")
	}
	copy(beneficiary[:], data)
	return beneficiary, true, nil
}

func (s *Store) BeneficiaryPut(account, beneficiary [20]byte) error {
	return s.put(addrKey(prefBeneficial, account), beneficiary[:])
}

// --- referral registry state ---

func (s *Store) ReferrerGet(addr [20]byte) ([20]byte, bool, error) {
	var referrer [20]byte
	data, err := s.get(addrKey(prefReferrer, addr))
	if errors.Is(err, ErrNotFound) {
		return referrer, false, nil
	}
	if err != nil {
		return referrer, false, err
	}
	if len(data) != len(referrer) {
		return referrer, false, fmt.Errorf("storage: malformed referrer entry")
	}
	copy(referrer[:], data)
	return referrer, true, nil
}

func (s *Store) ReferrerPut(addr, referrer [20]byte) error {
	return s.put(addrKey(prefReferrer, addr), referrer[:])
}
