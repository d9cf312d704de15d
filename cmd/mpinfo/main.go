// Diagnostic tool for inspecting .mp recordings
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-massphotometry/mp"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mpinfo <file.mp>")
		os.Exit(1)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("ERROR: creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename := os.Args[1]
	fmt.Printf("=== %s ===\n\n", filename)

	rec, err := mp.Read(filename,
		mp.WithConvertedMetadata(),
		mp.WithLogger(log),
	)
	if err != nil {
		fmt.Printf("ERROR: reading recording: %v\n", err)
		os.Exit(1)
	}

	m := rec.Movie
	fmt.Printf("Movie: %d frames of %dx%d, %d-bit samples\n\n",
		m.NumFrames(), m.Height(), m.Width(), m.SampleBits())

	fmt.Printf("Metadata (variant %s):\n", mp.DetectVariant(rec.Raw))
	out, err := json.MarshalIndent(rec.Meta, "  ", "  ")
	if err != nil {
		fmt.Printf("ERROR: encoding metadata: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  %s\n\n", out)

	keys := make([]string, 0, len(rec.Raw))
	for k := range rec.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("Raw entries: %d\n", len(keys))
	for _, k := range keys {
		e := rec.Raw[k]
		switch {
		case e.IsArray():
			arr, _ := e.Arr()
			fmt.Printf("  %s: array %v\n", k, arr.Shape)
		default:
			if s, err := e.Text(); err == nil {
				fmt.Printf("  %s: %q\n", k, s)
			} else if v, err := e.Float(); err == nil {
				fmt.Printf("  %s: %v\n", k, v)
			}
		}
	}
}
