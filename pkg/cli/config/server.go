package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr   string
	Warmup bool
	MaxAge time.Duration
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("WHATCDK_ADDR"),
		},
		&cli.BoolFlag{
			Name:        "warmup",
			Usage:       "Resolve all products in background at startup",
			Destination: &c.Warmup,
			Sources:     cli.EnvVars("WHATCDK_WARMUP"),
		},
		&cli.DurationFlag{
			Name:        "max-age",
			Usage:       "Cache-Control max-age of release responses (0 disables)",
			Value:       time.Minute,
			Destination: &c.MaxAge,
			Sources:     cli.EnvVars("WHATCDK_MAX_AGE"),
		},
	}
}
