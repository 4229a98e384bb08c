// solidmesh turns 3D GeoJSON polygons into triangle meshes and reports
// their area, volume, slope and closedness.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "analyze":
		return cmdAnalyze(rest, out)
	case "eval":
		return cmdEval(rest, out)
	case "export":
		return cmdExport(rest, out)
	case "serve":
		return cmdServe(rest, out)
	case "config":
		return cmdConfig(rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `solidmesh - 3D polygon mesh analysis

Usage:
  solidmesh <command> [options]

Commands:
  analyze <file.geojson>               Report area, volume and closedness per feature
  eval <expr> <file.geojson>           Evaluate an expression against each feature
  export <file.geojson> <out.stl>      Write a feature's mesh as STL
  serve                                Serve the HTTP API
  config [path]                        Write the effective config as YAML

Common options:
  -config path       Config file
  -tolerance d       Vertex merge distance (0 merges identical points only)
  -workers n         Parts triangulated at once
  -solve-timeout d   Bound on each triangulation call
  -debug             Debug logging

Examples:
  solidmesh analyze examples/cube.geojson
  solidmesh eval '(is-solid :tolerance 0.01)' examples/open_box.geojson
  solidmesh export -feature 0 examples/courtyard.geojson courtyard.stl`)
}
