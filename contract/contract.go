//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker is a long running background task. It returns nil when its job is
// over and ctx.Err() when stopped; recovering from panics is left to the supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// Named lets a worker choose the name it is logged under.
type Named interface {
	Name() string
}

// GetWorkerName returns the worker's own name when it has one, its type name otherwise.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	if named, ok := w.(Named); ok {
		return named.Name()
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
