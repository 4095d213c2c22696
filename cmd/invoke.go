package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-vector/internal/handler"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [key...]",
	Short: "Run the handler locally for one or more image keys",
	Long: `Run the handler once per key and print the response envelopes as JSON.

Keys are processed sequentially. A progress bar is shown on stderr when more
than one key is given. Instead of keys, --event reads a Lambda event (plain
bucket/key or an S3 notification) from a JSON file, or from stdin with "-".

Examples:
  face-vector invoke --bucket photos people/alice.jpg
  face-vector invoke --bucket photos a.jpg b.jpg c.jpg
  face-vector invoke --event s3-put.json`,
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)

	invokeCmd.Flags().String("bucket", "", "Bucket holding the images")
	invokeCmd.Flags().String("event", "", "Path to a JSON event file (- for stdin)")
	invokeCmd.Flags().Bool("quiet", false, "Disable the progress bar")
}

// invokeResult pairs a key with its envelope for multi-key output.
type invokeResult struct {
	Key      string           `json:"key"`
	Response handler.Response `json:"response"`
}

func runInvoke(cmd *cobra.Command, args []string) error {
	bucket := mustGetString(cmd, "bucket")
	eventPath := mustGetString(cmd, "event")
	quiet := mustGetBool(cmd, "quiet")

	events, err := invokeEvents(bucket, eventPath, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if len(events) == 1 {
		resp := p.handler.Handle(ctx, events[0])
		if err := outputJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("invocation failed with status %d", resp.StatusCode)
		}
		return nil
	}

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(len(events),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Extracting vectors"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]invokeResult, 0, len(events))
	var failed int
	for _, event := range events {
		_, key := event.Target()
		resp := p.handler.Handle(ctx, event)
		if resp.StatusCode != http.StatusOK {
			failed++
		}
		results = append(results, invokeResult{Key: key, Response: resp})
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := outputJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d invocations failed", failed, len(events))
	}
	return nil
}

// invokeEvents builds the events to run from either an event file or a
// bucket plus keys.
func invokeEvents(bucket, eventPath string, keys []string, stdin io.Reader) ([]handler.Event, error) {
	if eventPath != "" {
		if bucket != "" || len(keys) > 0 {
			return nil, errors.New("--event cannot be combined with --bucket or keys")
		}
		event, err := readEvent(eventPath, stdin)
		if err != nil {
			return nil, err
		}
		return []handler.Event{event}, nil
	}

	if len(keys) == 0 {
		return nil, errors.New("at least one key or --event is required")
	}

	events := make([]handler.Event, 0, len(keys))
	for _, key := range keys {
		events = append(events, handler.Event{Bucket: bucket, Key: key})
	}
	return events, nil
}

func readEvent(path string, stdin io.Reader) (handler.Event, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return handler.Event{}, fmt.Errorf("opening event file: %w", err)
		}
		defer f.Close()
		r = f
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return handler.Event{}, fmt.Errorf("reading event: %w", err)
	}
	event, err := handler.DecodeEvent(payload)
	if err != nil {
		return handler.Event{}, fmt.Errorf("decoding event: %w", err)
	}
	return event, nil
}

func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
