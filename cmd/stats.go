package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/callscore/internal/ingest"
	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/stats"
)

var statsFlags struct {
	file   string
	format string
	days   int
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Replay a JSONL file of calls and print the aggregate statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("stats"); err != nil {
			return err
		}
		format := strings.ToLower(statsFlags.format)
		if format != "json" && format != "yaml" {
			return eris.Errorf("unsupported format %q (want json or yaml)", statsFlags.format)
		}

		loc, err := cfg.Stats.Location()
		if err != nil {
			return err
		}
		analyzer, err := buildAnalyzer(cfg, nil)
		if err != nil {
			return err
		}
		coord := ingest.NewCoordinator(ingest.NewState(loc), analyzer)

		in, err := openInput(statsFlags.file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer in.Close()

		res, err := replayCalls(cmd.Context(), coord, in)
		if err != nil {
			return err
		}
		zap.L().Info("replay complete", zap.Int("ingested", res.Ingested), zap.Int("skipped", res.Skipped))

		out := statsOutput{
			Overall: coord.State().Report(),
			Daily:   coord.State().Daily(time.Now(), statsFlags.days),
		}
		return writeStats(cmd.OutOrStdout(), out, format)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFlags.file, "file", "-", "JSONL file of calls (- for stdin)")
	statsCmd.Flags().StringVar(&statsFlags.format, "format", "json", "output format: json or yaml")
	statsCmd.Flags().IntVar(&statsFlags.days, "days", 7, "days in the daily window")
	rootCmd.AddCommand(statsCmd)
}

// callLine is one JSONL input record.
type callLine struct {
	CallID          string  `json:"call_id"`
	Transcript      string  `json:"transcript"`
	AgentID         string  `json:"agent_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	CallType        string  `json:"call_type"`
	Source          string  `json:"source"`
}

type replayResult struct {
	Ingested int
	Skipped  int
}

type statsOutput struct {
	Overall stats.Report `json:"overall" yaml:"overall"`
	Daily   []stats.Day  `json:"daily" yaml:"daily"`
}

const maxLineBytes = 10 << 20

// replayCalls ingests every line of r in order. Blank lines are ignored;
// lines without a transcript are skipped. Malformed JSON aborts the replay.
func replayCalls(ctx context.Context, coord *ingest.Coordinator, r io.Reader) (replayResult, error) {
	var res replayResult

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var cl callLine
		if err := json.Unmarshal(line, &cl); err != nil {
			return res, eris.Wrapf(err, "line %d", lineNo)
		}

		_, err := coord.Ingest(ctx, ingest.Request{
			CallID:     cl.CallID,
			Transcript: cl.Transcript,
			Metadata: model.CallMetadata{
				DurationSeconds: cl.DurationSeconds,
				AgentID:         cl.AgentID,
				CallType:        cl.CallType,
				Source:          model.Source(strings.ToLower(cl.Source)),
			},
		})
		if eris.Is(err, ingest.ErrMissingTranscript) {
			zap.L().Warn("skipping call without transcript", zap.Int("line", lineNo), zap.String("call_id", cl.CallID))
			res.Skipped++
			continue
		}
		if err != nil {
			return res, eris.Wrapf(err, "line %d", lineNo)
		}
		res.Ingested++
	}
	return res, eris.Wrap(sc.Err(), "read calls")
}

func writeStats(w io.Writer, out statsOutput, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(out), "encode json")
}

// openInput opens path, or wraps stdin when path is "-" or empty.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	return f, nil
}
