package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type sweepWorker struct{}

func (sweepWorker) Run(ctx context.Context) error {
	return nil
}

type namedWorker struct{}

func (namedWorker) Run(ctx context.Context) error {
	return nil
}

func (namedWorker) Name() string {
	return "presence-sweeper"
}

func TestGetWorkerName(t *testing.T) {
	req := require.New(t)

	req.Equal("sweepWorker", GetWorkerName(sweepWorker{}))
	req.Equal("sweepWorker", GetWorkerName(&sweepWorker{}))
	req.Equal("presence-sweeper", GetWorkerName(namedWorker{}))
	req.Equal("NilWorker", GetWorkerName(nil))
}
