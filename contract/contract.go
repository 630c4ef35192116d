//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"mystiko/protocol"
)

// FrameSink is the write path of one connected session. Deliver must never
// block: it reports false when the frame was dropped because the session's
// outbound buffer is full.
type FrameSink interface {
	Deliver(frame protocol.ServerFrame) bool
}

// Worker is a long-running unit of execution supervised for its lifetime.
// Workers don't protect themselves; the supervisor handles panics.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
