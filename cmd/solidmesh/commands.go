package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/chazu/solidmesh/internal/config"
	"github.com/chazu/solidmesh/internal/logger"
	"github.com/chazu/solidmesh/pkg/engine"
	"github.com/chazu/solidmesh/pkg/geom"
	"github.com/chazu/solidmesh/pkg/server"
	"github.com/chazu/solidmesh/pkg/solid"
	"github.com/chazu/solidmesh/pkg/source"
)

var errUsage = errors.New("invalid usage")

// command bundles a parsed flag set with the loaded config.
type command struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

// setup parses args for the named command, loads the config and starts
// the logger. extra registers command-specific flags.
func setup(name string, args []string, extra func(fs *flag.FlagSet)) (*command, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var flags config.Flags
	flags.Register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(&flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger.Sugar.Debugf("config: %+v", cfg)
	return &command{fs: fs, cfg: cfg}, nil
}

func (c *command) analysisOptions() solid.Options {
	return solid.Options{
		Tolerance:    c.cfg.MeshTolerance(),
		Workers:      c.cfg.Mesh.Workers,
		SolveTimeout: c.cfg.Mesh.SolveTimeout,
		Logger:       logger.L(),
	}
}

// featureReport is one line of analyze output.
type featureReport struct {
	Name   string       `json:"name,omitempty"`
	Report solid.Report `json:"report"`
	Issues []geom.Issue `json:"issues,omitempty"`
}

func cmdAnalyze(args []string, out io.Writer) error {
	c, err := setup("analyze", args, nil)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if c.fs.NArg() != 1 {
		return fmt.Errorf("%w: solidmesh analyze [options] <file.geojson>", errUsage)
	}
	features, err := source.ReadFile(c.fs.Arg(0))
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := c.analysisOptions()
	reports := make([]featureReport, len(features))
	for i, f := range features {
		sol := solid.Analyze(ctx, f.Geometry, opts)
		for _, pe := range sol.Failures() {
			logger.Warn("part skipped",
				zap.String("feature", f.Name()),
				zap.Int("part", pe.Part),
				zap.String("kind", string(pe.Kind())),
				zap.Error(pe.Err))
		}
		reports[i] = featureReport{Name: f.Name(), Report: sol.Report(), Issues: geom.Validate(f.Geometry)}
	}
	return writeIndented(out, reports)
}

func cmdEval(args []string, out io.Writer) error {
	c, err := setup("eval", args, nil)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if c.fs.NArg() < 1 || c.fs.NArg() > 2 {
		return fmt.Errorf("%w: solidmesh eval [options] <expr> [file.geojson]", errUsage)
	}
	expr := c.fs.Arg(0)

	features := []source.Feature{{}}
	if c.fs.NArg() == 2 {
		if features, err = source.ReadFile(c.fs.Arg(1)); err != nil {
			return err
		}
	}

	eng := engine.NewEngine(engine.Config{
		Analysis: c.analysisOptions(),
		Timeout:  c.cfg.Server.EvalTimeout,
	})
	ctx := context.Background()
	for i, f := range features {
		v, evalErrs, err := eng.Evaluate(ctx, expr, f.Geometry)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if len(evalErrs) > 0 {
			return fmt.Errorf("feature %d: %w", i, evalErrs[0])
		}
		b, err := json.Marshal(server.JSONValue(v))
		if err != nil {
			return err
		}
		name := f.Name()
		if name == "" {
			name = fmt.Sprint(i)
		}
		fmt.Fprintf(out, "%s\t%s\n", name, b)
	}
	return nil
}

func cmdExport(args []string, out io.Writer) error {
	var feature int
	c, err := setup("export", args, func(fs *flag.FlagSet) {
		fs.IntVar(&feature, "feature", 0, "Index of the feature to export")
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if c.fs.NArg() != 2 {
		return fmt.Errorf("%w: solidmesh export [options] <file.geojson> <out.stl>", errUsage)
	}
	features, err := source.ReadFile(c.fs.Arg(0))
	if err != nil {
		return err
	}
	if feature < 0 || feature >= len(features) {
		return fmt.Errorf("feature %d out of range (file has %d)", feature, len(features))
	}

	sol := solid.Analyze(context.Background(), features[feature].Geometry, c.analysisOptions())
	path := c.fs.Arg(1)
	if err := sol.Mesh().SaveSTL(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d triangles to %s\n", sol.Mesh().TriangleCount(), path)
	return nil
}

func cmdServe(args []string, out io.Writer) error {
	c, err := setup("serve", args, nil)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.New(server.Options{
		Analysis:    c.analysisOptions(),
		EvalTimeout: c.cfg.Server.EvalTimeout,
		Logger:      logger.L(),
	})
	return s.Run(ctx, c.cfg.Server.Addr)
}

func cmdConfig(args []string, out io.Writer) error {
	c, err := setup("config", args, nil)
	if err != nil {
		return err
	}
	defer logger.Sync()

	path := filepath.Join(config.ConfigDir(), "config.yaml")
	if c.fs.NArg() > 0 {
		path = c.fs.Arg(0)
	}
	if err := c.cfg.SaveTo(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func writeIndented(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", b)
	return err
}
