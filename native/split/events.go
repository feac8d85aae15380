package split

import (
	"encoding/hex"
	"strconv"
	"strings"

	"curio/core/types"
)

const (
	EventTypeSettled       = "split.settled"
	EventTypeConfigUpdated = "split.config.updated"
)

type splitEvent struct {
	evt *types.Event
}

func (e splitEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e splitEvent) Event() *types.Event { return e.evt }

// NewSettledEvent reports a completed pool distribution for auditability.
func NewSettledEvent(s *Settlement) splitEvent {
	attrs := make(map[string]string)
	if s != nil {
		attrs["scope"] = hex.EncodeToString(s.Scope[:])
		attrs["buyer"] = hex.EncodeToString(s.Buyer[:])
		attrs["seller"] = hex.EncodeToString(s.Seller[:])
		attrs["payToken"] = hex.EncodeToString(s.PayToken[:])
		attrs["pool"] = s.Pool.String()
		attrs["toBuyer"] = s.ToBuyer.String()
		attrs["referrerTotal"] = s.ReferrerTotal.String()
		attrs["toSeller"] = s.ToSeller.String()
		attrs["toTreasury"] = s.ToTreasury.String()
		attrs["levelsPaid"] = strconv.Itoa(s.LevelsPaid)
	}
	return splitEvent{evt: &types.Event{Type: EventTypeSettled, Attributes: attrs}}
}

// NewConfigUpdatedEvent reports a configuration change for a scope.
func NewConfigUpdatedEvent(scope Scope, cfg *Config, levels []uint32) splitEvent {
	attrs := make(map[string]string)
	attrs["scope"] = hex.EncodeToString(scope[:])
	if cfg != nil {
		attrs["cashbackBps"] = strconv.FormatUint(uint64(cfg.CashbackBps), 10)
		attrs["poolBps"] = strconv.FormatUint(uint64(cfg.PoolBps), 10)
		attrs["treasury"] = hex.EncodeToString(cfg.Treasury[:])
		attrs["recycleToBuyer"] = strconv.FormatBool(cfg.RecycleToBuyer)
		attrs["recycleToSeller"] = strconv.FormatBool(cfg.RecycleToSeller)
		attrs["requireReferrer"] = strconv.FormatBool(cfg.RequireReferrer)
		attrs["payToken"] = hex.EncodeToString(cfg.PayToken[:])
		attrs["active"] = strconv.FormatBool(cfg.Active)
	}
	parts := make([]string, len(levels))
	for i, bps := range levels {
		parts[i] = strconv.FormatUint(uint64(bps), 10)
	}
	attrs["levels"] = strings.Join(parts, ",")
	return splitEvent{evt: &types.Event{Type: EventTypeConfigUpdated, Attributes: attrs}}
}
