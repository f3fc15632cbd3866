// Command pixelgeo builds the scene geometry of a pixel-detector telescope
// from a YAML or Lisp description, validates it, and optionally exports
// triangle meshes of the placed volumes.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/chazu/pixelgeo/pkg/tessellate"
)

func main() {
	var opts Options
	flag.StringVar(&opts.GeometryPath, "geometry", "", "geometry description (.yaml, .yml or .lisp)")
	flag.StringVar(&opts.MeshPath, "mesh", "", "write tessellated meshes as JSON to this path")
	flag.IntVar(&opts.MaxInstances, "max-instances", tessellate.DefaultMaxInstances,
		"instances expanded per pixel or bump grid when meshing, negative for all")
	flag.IntVar(&opts.MeshCells, "mesh-cells", 0, "marching cubes resolution, 0 for the default")
	logLevel := flag.String("log-level", "info", "panic, fatal, error, warn, info, debug or trace")
	flag.Parse()

	if err := initLogger(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.GeometryPath == "" {
		fmt.Fprintln(os.Stderr, "pixelgeo: -geometry is required")
		flag.Usage()
		os.Exit(2)
	}

	app := NewApp(log.StandardLogger(), opts.MeshCells)
	if _, err := app.Run(opts); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func initLogger(levelName string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("pixelgeo: -log-level: %w", err)
	}
	log.SetLevel(level)
	return nil
}
