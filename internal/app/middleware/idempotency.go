package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"staypay/internal/app/commands"
)

// IdempotentCommand is replayed from the store when its key was seen before.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer to the handler's result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// ReplayedError is a stored failure served again for a repeated key. It
// unwraps to the matching known sentinel, if any, so error mapping still works.
type ReplayedError struct {
	Message string
	Cause   error
}

func (e *ReplayedError) Error() string { return e.Message }

func (e *ReplayedError) Unwrap() error { return e.Cause }

// Idempotency stores the first outcome of an idempotent command and replays
// it for later calls with the same key. Temporary failures are not stored so
// the caller can retry under the same key. known lists sentinel errors whose
// identity must survive a replay.
func Idempotency(store IdempotencyStore, codec ResultCodec, known ...error) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(rec, idCmd, codec, known)
			}

			result, err := next.Dispatch(ctx, cmd)
			record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
			if err != nil {
				if isTemporary(err) {
					return nil, err
				}
				record.Error = err.Error()
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec, known []error) (any, error) {
	if rec.Error != "" {
		replayed := &ReplayedError{Message: rec.Error}
		for _, sentinel := range known {
			if sentinel != nil && strings.Contains(rec.Error, sentinel.Error()) {
				replayed.Cause = sentinel
				break
			}
		}
		return nil, replayed
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}

// isTemporary reports errors a client may retry under the same key.
func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
