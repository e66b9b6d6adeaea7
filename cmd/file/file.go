// Package file implements one-shot classification of a local capture,
// useful for smoke-testing a model endpoint and rule table.
package file

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Deven-0012/Cloud-281/internal/audiofile"
	"github.com/Deven-0012/Cloud-281/internal/classifier"
	"github.com/Deven-0012/Cloud-281/internal/conf"
)

// Command returns the file subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Classify a single audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyFile(settings, args[0])
		},
	}
}

func classifyFile(settings *conf.Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := audiofile.Probe(data)
	if err != nil {
		return fmt.Errorf("probing %s: %w", path, err)
	}
	fmt.Printf("%s: %.1fs, %d Hz, %d channel(s), %d bit\n",
		path, info.Duration.Seconds(), info.SampleRate, info.Channels, info.BitDepth)

	model := classifier.NewHTTPClassifier(&settings.Classifier)
	result, err := model.Classify(context.Background(), data)
	if err != nil {
		return fmt.Errorf("classifying %s: %w", path, err)
	}

	predictions := result.Predictions
	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})

	fmt.Printf("model %s, %d prediction(s):\n", result.ModelVersion, len(predictions))
	for _, p := range predictions {
		fmt.Printf("  %-16s %5.1f%%  [%ds - %ds]\n",
			p.Label, p.Confidence*100, p.WindowStart, p.WindowEnd)
	}
	return nil
}
