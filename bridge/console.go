package bridge

import (
	"encoding/json"
	"time"

	"github.com/afzaal-28/rn-inspector/instrument"
	"github.com/afzaal-28/rn-inspector/normalize"
	"github.com/afzaal-28/rn-inspector/protocol"
	"github.com/afzaal-28/rn-inspector/types"
)

const (
	consoleOrigin = "devtools"

	// Console timestamps above this are milliseconds, below it seconds.
	millisecondThreshold = 1e11
)

func (b *Bridge) handleConsoleAPICalled(params json.RawMessage) {
	var event protocol.ConsoleAPICalled
	if err := json.Unmarshal(params, &event); err != nil {
		b.logger.Debugf("dropping console event: %v", err)
		return
	}

	args := make([]*protocol.RemoteObject, len(event.Args))

	for i, raw := range event.Args {
		obj := &protocol.RemoteObject{}
		if err := json.Unmarshal(raw, obj); err == nil {
			args[i] = obj
		}
	}

	if len(args) > 0 && args[0] != nil {
		if line, ok := args[0].StringValue(); ok {
			if sentinel, payload, ok := instrument.Match(line); ok {
				b.handleInstrumented(sentinel, payload)
				return
			}
		}
	}

	ts := consoleTimestamp(event.Timestamp, b.now())
	level := normalize.ConsoleLevel(event.Type)
	seq := b.console.acquire()

	b.workers.Add(1)

	go func() {
		defer b.workers.Done()
		defer b.console.release(seq)

		values := make([]any, len(args))
		for i, arg := range args {
			values[i] = b.materializer.Argument(b.ctx, arg)
		}

		msg := normalize.ArgsString(args)
		if len(values) > 0 {
			msg = normalize.ValuesString(values)
		}

		if !b.console.wait(seq) {
			return
		}

		b.emit(types.Event{
			Type: types.EventConsole,
			Payload: &types.ConsolePayload{
				TS:         ts,
				Level:      level,
				Msg:        msg,
				Origin:     consoleOrigin,
				DeviceID:   b.deviceID,
				RawArgs:    values,
				RawCdpArgs: event.Args,
			},
		})
	}()
}

func (b *Bridge) handleLogEntry(params json.RawMessage) {
	var event protocol.LogEntryAdded
	if err := json.Unmarshal(params, &event); err != nil {
		b.logger.Debugf("dropping log entry: %v", err)
		return
	}

	payload := &types.ConsolePayload{
		TS:       consoleTimestamp(event.Entry.Timestamp, b.now()),
		Level:    normalize.ConsoleLevel(event.Entry.Level),
		Msg:      event.Entry.Text,
		Origin:   consoleOrigin,
		DeviceID: b.deviceID,
	}

	// Log entries share the console ordering so they never overtake an
	// earlier console call that is still being materialized.
	seq := b.console.acquire()

	b.workers.Add(1)

	go func() {
		defer b.workers.Done()
		defer b.console.release(seq)

		if b.console.wait(seq) {
			b.emit(types.Event{Type: types.EventConsole, Payload: payload})
		}
	}()
}

func consoleTimestamp(ts *float64, now time.Time) string {
	if ts == nil || *ts <= 0 {
		return types.Timestamp(now)
	}

	if *ts > millisecondThreshold {
		return types.TimestampMs(*ts)
	}

	return types.TimestampMs(*ts * 1000)
}
