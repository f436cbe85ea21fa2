package toolexecutor

import (
	"context"
	"fmt"
)

// FileOutputProcessor rewrites file outputs into persisted-file references
type FileOutputProcessor interface {
	Process(ctx context.Context, d *Descriptor, output interface{}, execCtx *ExecutionContext) (interface{}, error)
}

// postProcess runs the descriptor's hook on a successful result. A hook that
// errors, panics or returns an unsuccessful result is logged and the original
// result is kept.
func (te *ToolExecutor) postProcess(ctx context.Context, d *Descriptor, result ToolResult, params map[string]interface{}, req Request) ToolResult {
	if d.PostProcess == nil || !result.Success || req.SkipPostProcess {
		return result
	}

	input := result
	input.Output = cloneValue(result.Output)

	processed, err := runHook(func() (ToolResult, error) {
		return d.PostProcess(ctx, input, params, te)
	})
	if err != nil {
		te.metrics.RecordError(d.ID, string(KindPostProcess))
		te.logger.Warn().Err(err).Str("tool", d.ID).Msg("Post-processing failed, using original result")
		return result
	}
	if !processed.Success {
		te.metrics.RecordError(d.ID, string(KindPostProcess))
		te.logger.Warn().Str("tool", d.ID).Str("error", processed.Error).Msg("Post-processing reported failure, using original result")
		return result
	}
	return processed
}

// processFileOutputs persists declared file outputs. Failures keep the result unchanged.
func (te *ToolExecutor) processFileOutputs(ctx context.Context, d *Descriptor, result ToolResult, execCtx *ExecutionContext) ToolResult {
	if te.files == nil || execCtx == nil || !d.ProducesFiles() || !result.Success {
		return result
	}

	var output interface{}
	_, err := runHook(func() (ToolResult, error) {
		var err error
		output, err = te.files.Process(ctx, d, cloneValue(result.Output), execCtx)
		return ToolResult{}, err
	})
	if err != nil {
		te.metrics.RecordError(d.ID, string(KindFileOutput))
		te.logger.Warn().Err(err).Str("tool", d.ID).Msg("File output processing failed, using original result")
		return result
	}

	result.Output = output
	return result
}

// runHook calls fn and turns a panic into an error
func runHook(fn func() (ToolResult, error)) (result ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
