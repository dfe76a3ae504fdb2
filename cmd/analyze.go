package main

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/callscore/internal/model"
)

var analyzeFlags struct {
	file     string
	agentID  string
	duration float64
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score one transcript and print the analysis as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		in, err := openInput(analyzeFlags.file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer in.Close()
		transcript, err := io.ReadAll(in)
		if err != nil {
			return eris.Wrap(err, "read transcript")
		}
		if len(bytes.TrimSpace(transcript)) == 0 {
			return eris.New("transcript is empty")
		}

		analyzer, err := buildAnalyzer(cfg, nil)
		if err != nil {
			return err
		}

		res := analyzer.Analyze(cmd.Context(), uuid.NewString(), string(transcript), model.CallMetadata{
			DurationSeconds: analyzeFlags.duration,
			AgentID:         analyzeFlags.agentID,
			Source:          model.SourceManual,
		})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFlags.file, "file", "-", "transcript file (- for stdin)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.agentID, "agent-id", "", "agent id passed to the classifier")
	analyzeCmd.Flags().Float64Var(&analyzeFlags.duration, "duration", 0, "call duration in seconds")
	rootCmd.AddCommand(analyzeCmd)
}
