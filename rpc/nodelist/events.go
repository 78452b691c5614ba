package nodelist

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EpochChangedEvent represents "EpochChanged" event emitted by the contract.
type EpochChangedEvent struct {
	OldEpoch *big.Int
	NewEpoch *big.Int
}

// NodeListedEvent represents "NodeListed" event emitted by the contract.
type NodeListedEvent struct {
	PublicKey common.Address
	Epoch     *big.Int
	Position  *big.Int
}

// OwnershipTransferredEvent represents "OwnershipTransferred" event emitted by the contract.
type OwnershipTransferredEvent struct {
	PreviousOwner common.Address
	NewOwner      common.Address
}

// EpochChangedEventsFromReceipt retrieves a set of all emitted events
// with "EpochChanged" name from the provided [types.Receipt].
func EpochChangedEventsFromReceipt(r *types.Receipt) ([]*EpochChangedEvent, error) {
	return eventsFromReceipt[EpochChangedEvent](r, "EpochChanged")
}

// NodeListedEventsFromReceipt retrieves a set of all emitted events
// with "NodeListed" name from the provided [types.Receipt].
func NodeListedEventsFromReceipt(r *types.Receipt) ([]*NodeListedEvent, error) {
	return eventsFromReceipt[NodeListedEvent](r, "NodeListed")
}

// OwnershipTransferredEventsFromReceipt retrieves a set of all emitted events
// with "OwnershipTransferred" name from the provided [types.Receipt].
func OwnershipTransferredEventsFromReceipt(r *types.Receipt) ([]*OwnershipTransferredEvent, error) {
	return eventsFromReceipt[OwnershipTransferredEvent](r, "OwnershipTransferred")
}

// eventsFromReceipt decodes all logs of the given event. Logs with another
// signature are skipped, their emitter is not checked.
func eventsFromReceipt[E any](r *types.Receipt, name string) ([]*E, error) {
	if r == nil {
		return nil, errors.New("nil receipt")
	}

	ev, ok := ABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", name)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	var res []*E
	for i, l := range r.Logs {
		if l == nil || len(l.Topics) == 0 || l.Topics[0] != ev.ID {
			continue
		}

		var e = new(E)

		err := ABI.UnpackIntoInterface(e, name, l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize %s from log %d: %w", name, i, err)
		}

		if len(indexed) > 0 {
			if len(l.Topics)-1 != len(indexed) {
				return nil, fmt.Errorf("failed to deserialize %s from log %d: wrong number of topics", name, i)
			}

			err = abi.ParseTopics(e, indexed, l.Topics[1:])
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize %s topics from log %d: %w", name, i, err)
			}
		}

		res = append(res, e)
	}

	return res, nil
}
