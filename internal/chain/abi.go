package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	ycrvABIJSON = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"minter","type":"address"},{"indexed":true,"name":"receiver","type":"address"},{"indexed":false,"name":"value","type":"uint256"},{"indexed":false,"name":"burned","type":"bool"}],"name":"Mint","type":"event"}]`

	settlementABIJSON = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"solver","type":"address"}],"name":"Settlement","type":"event"},{"anonymous":false,"inputs":[{"indexed":true,"name":"owner","type":"address"},{"indexed":false,"name":"sellToken","type":"address"},{"indexed":false,"name":"buyToken","type":"address"},{"indexed":false,"name":"sellAmount","type":"uint256"},{"indexed":false,"name":"buyAmount","type":"uint256"},{"indexed":false,"name":"feeAmount","type":"uint256"},{"indexed":false,"name":"orderUid","type":"bytes"}],"name":"Trade","type":"event"}]`

	escrowABIJSON = `[{"anonymous":false,"inputs":[{"indexed":false,"name":"old_supply","type":"uint256"},{"indexed":false,"name":"new_supply","type":"uint256"},{"indexed":false,"name":"ts","type":"uint256"}],"name":"Supply","type":"event"},{"anonymous":false,"inputs":[{"indexed":true,"name":"sender","type":"address"},{"indexed":true,"name":"user","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"locktime","type":"uint256"},{"indexed":false,"name":"ts","type":"uint256"}],"name":"ModifyLock","type":"event"}]`

	bribeABIJSON = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"briber","type":"address"},{"indexed":true,"name":"gauge","type":"address"},{"indexed":true,"name":"reward_token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"RewardAdded","type":"event"}]`

	feeDistABIJSON = `[{"anonymous":false,"inputs":[{"indexed":false,"name":"time","type":"uint256"},{"indexed":false,"name":"tokens","type":"uint256"}],"name":"CheckpointToken","type":"event"}]`

	viewABIJSON = `[{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},{"inputs":[{"name":"token","type":"address"}],"name":"getPriceUsdcRecommended","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[{"name":"user","type":"address"}],"name":"locked","outputs":[{"name":"amount","type":"uint256"},{"name":"end","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var (
	ycrvABI       abi.ABI
	settlementABI abi.ABI
	escrowABI     abi.ABI
	bribeABI      abi.ABI
	feeDistABI    abi.ABI
	viewABI       abi.ABI
)

func init() {
	for _, def := range []struct {
		json string
		dst  *abi.ABI
	}{
		{ycrvABIJSON, &ycrvABI},
		{settlementABIJSON, &settlementABI},
		{escrowABIJSON, &escrowABI},
		{bribeABIJSON, &bribeABI},
		{feeDistABIJSON, &feeDistABI},
		{viewABIJSON, &viewABI},
	} {
		parsed, err := abi.JSON(strings.NewReader(def.json))
		if err != nil {
			panic("failed to parse embedded ABI: " + err.Error())
		}
		*def.dst = parsed
	}
}

type eventSpec struct {
	abi   *abi.ABI
	event string
}

var eventSpecs = map[EventKind]eventSpec{
	KindMint:            {&ycrvABI, "Mint"},
	KindSettlement:      {&settlementABI, "Settlement"},
	KindTrade:           {&settlementABI, "Trade"},
	KindSupply:          {&escrowABI, "Supply"},
	KindModifyLock:      {&escrowABI, "ModifyLock"},
	KindRewardAdded:     {&bribeABI, "RewardAdded"},
	KindCheckpointToken: {&feeDistABI, "CheckpointToken"},
}

func specFor(kind EventKind) (eventSpec, error) {
	spec, ok := eventSpecs[kind]
	if !ok {
		return eventSpec{}, fmt.Errorf("unknown event kind %q", kind)
	}
	return spec, nil
}

// decodeLog turns a raw log into a typed Record. The bool result is false
// when the log's signature topic does not match kind (foreign logs in a
// shared receipt), which is not an error.
func decodeLog(kind EventKind, lg types.Log) (Record, bool, error) {
	spec, err := specFor(kind)
	if err != nil {
		return Record{}, false, err
	}

	event := spec.abi.Events[spec.event]
	if len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
		return Record{}, false, nil
	}

	payload, err := decodePayload(kind, event, lg)
	if err != nil {
		return Record{}, false, fmt.Errorf("decode %s log: %w", spec.event, err)
	}

	return Record{
		Kind:     kind,
		Block:    lg.BlockNumber,
		TxHash:   lg.TxHash,
		LogIndex: lg.Index,
		Payload:  payload,
	}, true, nil
}

func decodePayload(kind EventKind, event abi.Event, lg types.Log) (any, error) {
	var out any
	switch kind {
	case KindMint:
		out = new(MintEvent)
	case KindSettlement:
		out = new(SettlementEvent)
	case KindTrade:
		out = new(TradeEvent)
	case KindSupply:
		out = new(SupplyEvent)
	case KindModifyLock:
		out = new(ModifyLockEvent)
	case KindRewardAdded:
		out = new(RewardAddedEvent)
	case KindCheckpointToken:
		out = new(CheckpointTokenEvent)
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}

	if err := unpackEvent(event, out, lg); err != nil {
		return nil, err
	}
	return deref(out), nil
}

func unpackEvent(event abi.Event, out any, lg types.Log) error {
	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		values, err := nonIndexed.Unpack(lg.Data)
		if err != nil {
			return fmt.Errorf("unpack data: %w", err)
		}
		if err := nonIndexed.Copy(out, values); err != nil {
			return fmt.Errorf("copy data: %w", err)
		}
	}

	indexed := make(abi.Arguments, 0, len(event.Inputs))
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if len(lg.Topics) < len(indexed)+1 {
			return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(lg.Topics))
		}
		if err := abi.ParseTopics(out, indexed, lg.Topics[1:len(indexed)+1]); err != nil {
			return fmt.Errorf("parse topics: %w", err)
		}
	}
	return nil
}

func deref(v any) any {
	switch t := v.(type) {
	case *MintEvent:
		return *t
	case *SettlementEvent:
		return *t
	case *TradeEvent:
		return *t
	case *SupplyEvent:
		return *t
	case *ModifyLockEvent:
		return *t
	case *RewardAddedEvent:
		return *t
	case *CheckpointTokenEvent:
		return *t
	default:
		return v
	}
}
