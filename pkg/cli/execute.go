package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
	"github.com/spf13/cobra"
)

func NewExecuteCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <pipelineId> <nodeId>",
		Short: "Execute one node of a pipeline",
		Long: `Execute runs the executor matching the node's type: the node is marked
in_progress, its inputs are fetched, the work is performed and the terminal
status (completed or failed) is persisted.

Exits 0 on success, 1 on failure with a structured error on stderr.`,
		Example: `  vidpipe execute course-intro merge-final`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipelineID, nodeID := args[0], args[1]

			ctx := cmd.Context()
			ctx = logger.SetRunID(ctx, uuid.New().String())
			ctx = logger.SetPipelineID(ctx, pipelineID)
			ctx = logger.SetNodeID(ctx, nodeID)

			if err := root.dispatcher.Run(ctx, root.state, pipelineID, nodeID); err != nil {
				printExecError(pipelineID, nodeID, err)
				// The error is already reported; cobra must not re-print it.
				cmd.SilenceErrors = true
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "node %s completed\n", nodeID)
			return nil
		},
	}

	return cmd
}

func printExecError(pipelineID, nodeID string, err error) {
	code := pipeline.ErrCodeInternal
	if de, ok := pipeline.AsError(err); ok {
		code = de.Code
	}
	fmt.Fprintf(os.Stderr, "error: code=%s pipeline=%s node=%s message=%q\n",
		code, pipelineID, nodeID, err.Error())
}
