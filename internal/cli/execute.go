package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var (
	executeParams          string
	executeSkipProxy       bool
	executeSkipPostProcess bool
	executeWorkspace       string
	executeWorkflow        string
)

// ErrToolFailed is returned after a failed tool result has been printed
var ErrToolFailed = fmt.Errorf("tool execution failed")

var executeCmd = &cobra.Command{
	Use:   "execute <toolId>",
	Short: "Execute a tool and print its result",
	Long: `Execute a built-in, custom (custom_<id>) or MCP (mcp-<server>-<tool>) tool
and print the tool result as JSON. The command exits non-zero when the tool fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	executeCmd.Flags().StringVarP(&executeParams, "params", "p", "{}", "tool parameters as a JSON object")
	executeCmd.Flags().BoolVar(&executeSkipProxy, "skip-proxy", false, "call external URLs directly instead of through the forwarding gateway")
	executeCmd.Flags().BoolVar(&executeSkipPostProcess, "skip-post-process", false, "skip the tool's post-processing step")
	executeCmd.Flags().StringVar(&executeWorkspace, "workspace", "", "workspace id of the execution context")
	executeCmd.Flags().StringVar(&executeWorkflow, "workflow", "", "workflow id of the execution context")
	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	params, err := parseParams(executeParams)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeAndPrint(ctx, cmd, a.executor, toolexecutor.Request{
		ToolID:          args[0],
		Params:          params,
		SkipProxy:       executeSkipProxy,
		SkipPostProcess: executeSkipPostProcess,
		Context:         executionContext(executeWorkspace, executeWorkflow),
	})
}

// executeAndPrint runs one request and writes the indented result to stdout
func executeAndPrint(ctx context.Context, cmd *cobra.Command, exec toolexecutor.Executor, req toolexecutor.Request) error {
	result := exec.Execute(ctx, req)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if !result.Success {
		return ErrToolFailed
	}
	return nil
}

func parseParams(raw string) (map[string]interface{}, error) {
	params := map[string]interface{}{}
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params: must be a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return params, nil
}

func executionContext(workspaceID, workflowID string) *toolexecutor.ExecutionContext {
	if workspaceID == "" && workflowID == "" {
		return nil
	}
	return &toolexecutor.ExecutionContext{
		WorkspaceID: workspaceID,
		WorkflowID:  workflowID,
	}
}
