package bridge

import (
	"encoding/json"
	"errors"

	"github.com/afzaal-28/rn-inspector/instrument"
	"github.com/afzaal-28/rn-inspector/types"
)

// RequestStorage asks the target for a storage snapshot, reported later as
// a storage event under requestID.
func (b *Bridge) RequestStorage(requestID string) {
	if err := b.evaluate(instrument.FetchStorageExpression(requestID)); err != nil {
		b.emit(types.StorageFailure(requestID, b.deviceID, failureText(err)))
	}
}

func (b *Bridge) RequestStorageMutation(mutation types.StorageMutation) {
	expression, err := instrument.MutateStorageExpression(mutation)
	if err == nil {
		err = b.evaluate(expression)
	}

	if err != nil {
		b.emit(types.StorageFailure(mutation.RequestID, b.deviceID, failureText(err)))
	}
}

func (b *Bridge) RequestUI(requestID string) {
	if err := b.evaluate(instrument.FetchUIExpression(requestID)); err != nil {
		b.emit(types.UIFailure(requestID, b.deviceID, failureText(err)))
	}
}

// RequestNavigation runs a navigation command inside the target. The result
// arrives as a navigation event of type command-result.
func (b *Bridge) RequestNavigation(requestID, command string, payload json.RawMessage) {
	if err := b.evaluate(instrument.NavigationExpression(requestID, command, payload)); err != nil {
		b.emit(types.NavigationFailure(requestID, command, b.deviceID, failureText(err)))
	}
}

func failureText(err error) string {
	if errors.Is(err, ErrNotConnected) {
		return types.ErrTextNotConnected
	}

	return err.Error()
}
