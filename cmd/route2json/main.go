package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/woozymasta/elevprofile/internal/document"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input  string `short:"i" long:"in" description:"Input file path (KML, GPX or GeoJSON). Reads from stdin if empty"`
	Output string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"geojson" choice:"yaml" default:"geojson"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Read Input
	var doc *document.Document
	var err error

	if opts.Input != "" {
		doc, err = document.ParseFile(opts.Input)
	} else {
		doc, err = document.ParseReader(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading route document: %v\n", err)
		os.Exit(1)
	}

	if doc.SkippedTokens > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d malformed coordinate tokens\n", doc.SkippedTokens)
	}

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(doc)
	} else {
		outputData, err = json.MarshalIndent(doc.FeatureCollection(), "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully converted %d route points and %d named points to %s (format: %s)\n",
			len(doc.Route), len(doc.Points), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
