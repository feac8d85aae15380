package storage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"curio/native/market"
	"curio/native/split"
)

// RLP cannot carry signed integers or raw bools mixed with big.Int pointers
// in every position, so persisted records mirror the domain types with
// unsigned timestamps. The listing ID lives in the key, not the record.
type listingRecord struct {
	Seller     [20]byte
	Collection [20]byte
	AssetID    uint64
	PayToken   [20]byte
	Price      *big.Int
	Deadline   uint64
	CreatedAt  uint64
	Active     bool
}

func encodeListing(l *market.Listing) ([]byte, error) {
	price := l.Price
	if price == nil {
		price = big.NewInt(0)
	}
	return rlp.EncodeToBytes(&listingRecord{
		Seller:     l.Seller,
		Collection: l.Collection,
		AssetID:    l.AssetID,
		PayToken:   l.PayToken,
		Price:      price,
		Deadline:   uint64(l.Deadline),
		CreatedAt:  uint64(l.CreatedAt),
		Active:     l.Active,
	})
}

func decodeListing(id [32]byte, data []byte) (*market.Listing, error) {
	var rec listingRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, err
	}
	return &market.Listing{
		ID:         id,
		Seller:     rec.Seller,
		Collection: rec.Collection,
		AssetID:    rec.AssetID,
		PayToken:   rec.PayToken,
		Price:      rec.Price,
		Deadline:   int64(rec.Deadline),
		CreatedAt:  int64(rec.CreatedAt),
		Active:     rec.Active,
	}, nil
}

type splitConfigRecord struct {
	CashbackBps     uint32
	PoolBps         uint32
	Treasury        [20]byte
	RecycleToBuyer  bool
	RecycleToSeller bool
	RequireReferrer bool
	PayToken        [20]byte
	Active          bool
}

func encodeSplitConfig(cfg *split.Config) ([]byte, error) {
	return rlp.EncodeToBytes(&splitConfigRecord{
		CashbackBps:     cfg.CashbackBps,
		PoolBps:         cfg.PoolBps,
		Treasury:        cfg.Treasury,
		RecycleToBuyer:  cfg.RecycleToBuyer,
		RecycleToSeller: cfg.RecycleToSeller,
		RequireReferrer: cfg.RequireReferrer,
		PayToken:        cfg.PayToken,
		Active:          cfg.Active,
	})
}

func decodeSplitConfig(data []byte) (*split.Config, error) {
	var rec splitConfigRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, err
	}
	return &split.Config{
		CashbackBps:     rec.CashbackBps,
		PoolBps:         rec.PoolBps,
		Treasury:        rec.Treasury,
		RecycleToBuyer:  rec.RecycleToBuyer,
		RecycleToSeller: rec.RecycleToSeller,
		RequireReferrer: rec.RequireReferrer,
		PayToken:        rec.PayToken,
		Active:          rec.Active,
	}, nil
}
