package config

import (
	"errors"
	"flag"
	"strconv"
	"time"
)

// Flags holds command-line overrides. Zero values mean the flag was not
// given.
type Flags struct {
	Config       string
	Debug        bool
	Tolerance    *float64 // 0 forces identical-point merging
	Workers      int
	SolveTimeout time.Duration
	Addr         string
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.Func("tolerance", "Vertex merge distance (0 merges identical points only)", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		if v < 0 {
			return errors.New("must not be negative")
		}
		f.Tolerance = &v
		return nil
	})
	fs.IntVar(&f.Workers, "workers", 0, "Parts triangulated at once")
	fs.DurationVar(&f.SolveTimeout, "solve-timeout", 0, "Bound on each triangulation call")
	fs.StringVar(&f.Addr, "addr", "", "HTTP listen address")
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Tolerance != nil {
		if *f.Tolerance == 0 {
			cfg.Mesh.Tolerance = nil
		} else {
			tol := *f.Tolerance
			cfg.Mesh.Tolerance = &tol
		}
	}
	if f.Workers > 0 {
		cfg.Mesh.Workers = f.Workers
	}
	if f.SolveTimeout > 0 {
		cfg.Mesh.SolveTimeout = f.SolveTimeout
	}
	if f.Addr != "" {
		cfg.Server.Addr = f.Addr
	}
}
