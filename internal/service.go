package internal

import (
	"context"

	"github.com/lychee-technology/foundry"
)

// Service wires the executor and the batch handler behind the public
// Service interface.
type Service struct {
	executor *OperationExecutor
	batch    *BatchHandler
}

func NewService(model *foundry.Model, db DBConn, cfg *foundry.Config) *Service {
	conn := NewConnector(db)
	executor := NewOperationExecutor(model, conn, cfg.Query)
	return &Service{
		executor: executor,
		batch:    NewBatchHandler(executor, conn, cfg.Batch.MaxOperations),
	}
}

// Execute runs a single operation outside any transaction
func (s *Service) Execute(ctx context.Context, op *foundry.Operation) ([]map[string]any, error) {
	return s.executor.Execute(ctx, nil, op)
}

// ExecuteBatch runs a batch request under the configured failure policy
func (s *Service) ExecuteBatch(ctx context.Context, req *foundry.BatchRequest) (*foundry.BatchResult, error) {
	return s.batch.Execute(ctx, req)
}
