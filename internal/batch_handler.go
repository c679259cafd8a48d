package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lychee-technology/foundry"
)

// skip reasons reported in batch results
const (
	reasonDependencyFailed = "Dependency failed"
	reasonBatchAborted     = "Previous operation failed"
)

// BatchHandler orchestrates multi-operation requests: it assigns
// missing IDs, harvests implicit dependencies from $ref expressions,
// executes in topological order and applies the request's failure
// policy.
type BatchHandler struct {
	executor *OperationExecutor
	conn     *Connector
	maxOps   int
}

func NewBatchHandler(executor *OperationExecutor, conn *Connector, maxOps int) *BatchHandler {
	return &BatchHandler{executor: executor, conn: conn, maxOps: maxOps}
}

// Execute runs a batch request. Atomic batches run in one transaction
// and roll back on the first failure; continue-on-error batches record
// per-operation failures and keep going.
func (b *BatchHandler) Execute(ctx context.Context, req *foundry.BatchRequest) (*foundry.BatchResult, error) {
	if req.Options.Atomic && req.Options.ContinueOnError {
		return nil, foundry.NewValidationError("atomic and continue_on_error are mutually exclusive")
	}
	if len(req.Operations) == 0 {
		return &foundry.BatchResult{Success: true, Results: map[string]*foundry.OperationResult{}}, nil
	}
	if len(req.Operations) > b.maxOps {
		return nil, foundry.NewBatchSizeExceededError(len(req.Operations), b.maxOps)
	}

	ops := make([]foundry.BatchOperation, len(req.Operations))
	copy(ops, req.Operations)
	for i := range ops {
		if ops[i].ID == "" {
			ops[i].ID = fmt.Sprintf("op_%d", i)
		}
		ops[i].DependsOn = mergeImplicitDependencies(&ops[i])
	}

	resolver, err := NewDependencyResolver(ops)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*foundry.BatchOperation, len(ops))
	results := make(map[string]*foundry.OperationResult, len(ops))
	for i := range ops {
		byID[ops[i].ID] = &ops[i]
		results[ops[i].ID] = &foundry.OperationResult{Status: foundry.StatusPending}
	}

	zap.S().Infow("executing batch",
		"operations", len(ops), "atomic", req.Options.Atomic, "continue_on_error", req.Options.ContinueOnError)

	if req.Options.Atomic {
		tx, err := b.conn.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback(ctx) // no-op if committed

		for _, id := range resolver.ExecutionOrder() {
			if err := b.runOperation(ctx, tx, byID[id], req.Claims, results); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, foundry.NewTransactionError("failed to commit batch", err)
		}
		return &foundry.BatchResult{Success: true, Results: results}, nil
	}

	aborted := false
	for _, id := range resolver.ExecutionOrder() {
		result := results[id]
		if reason := b.skipReason(byID[id], results); reason != "" {
			result.Status = foundry.StatusSkipped
			result.Reason = reason
			continue
		}
		if aborted {
			result.Status = foundry.StatusSkipped
			result.Reason = reasonBatchAborted
			continue
		}
		if err := b.runOperation(ctx, nil, byID[id], req.Claims, results); err != nil {
			result.Status = foundry.StatusFailed
			result.Error = err.Error()
			if !req.Options.ContinueOnError {
				aborted = true
			}
		}
	}

	success := true
	for _, result := range results {
		if result.Status != foundry.StatusCompleted {
			success = false
			break
		}
	}
	return &foundry.BatchResult{Success: success, Results: results}, nil
}

// runOperation resolves references, executes one operation and records
// its result. Single-row results unwrap to a plain object.
func (b *BatchHandler) runOperation(ctx context.Context, tx querier, op *foundry.BatchOperation, claims *foundry.Claims, results map[string]*foundry.OperationResult) error {
	result := results[op.ID]
	result.Status = foundry.StatusRunning

	resolver := NewReferenceResolver(results)
	queryParams, err := resolver.ResolveParams(op.QueryParams)
	if err != nil {
		result.Status = foundry.StatusFailed
		result.Error = err.Error()
		return err
	}
	storeParams, err := resolver.ResolveParams(op.StoreParams)
	if err != nil {
		result.Status = foundry.StatusFailed
		result.Error = err.Error()
		return err
	}

	rows, err := b.executor.Execute(ctx, tx, &foundry.Operation{
		Entity:         op.Entity,
		Action:         op.Action,
		QueryParams:    queryParams,
		StoreParams:    storeParams,
		MetadataParams: op.MetadataParams,
		Claims:         claims,
	})
	if err != nil {
		result.Status = foundry.StatusFailed
		result.Error = err.Error()
		return err
	}

	result.Status = foundry.StatusCompleted
	if len(rows) == 1 {
		result.Data = rows[0]
	} else {
		result.Data = rows
	}
	return nil
}

// skipReason reports whether any dependency of the operation did not
// complete.
func (b *BatchHandler) skipReason(op *foundry.BatchOperation, results map[string]*foundry.OperationResult) string {
	for _, dep := range op.DependsOn {
		if results[dep].Status != foundry.StatusCompleted {
			return reasonDependencyFailed
		}
	}
	return ""
}

// mergeImplicitDependencies unions the declared depends_on list with
// the operations referenced through $ref expressions.
func mergeImplicitDependencies(op *foundry.BatchOperation) []string {
	seen := make(map[string]bool, len(op.DependsOn))
	merged := make([]string, 0, len(op.DependsOn))
	for _, dep := range op.DependsOn {
		if !seen[dep] {
			seen[dep] = true
			merged = append(merged, dep)
		}
	}
	for _, refs := range [][]string{ValidateReferences(op.QueryParams), ValidateReferences(op.StoreParams)} {
		for _, dep := range refs {
			if !seen[dep] {
				seen[dep] = true
				merged = append(merged, dep)
			}
		}
	}
	return merged
}
