package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/looptile/internal/logger"
)

var (
	problemPath string
	ncells      int64
	deviceName  string
	logLevel    string
	logFormat   string
)

func commonProblemFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "problem",
			Aliases:     []string{"p"},
			Usage:       "path to a problem file (kernel + stage descriptor)",
			Destination: &problemPath,
		},
		&cli.Int64Flag{
			Name:        "cells",
			Usage:       "mesh cell count for the built-in sample problem",
			Value:       4096,
			Destination: &ncells,
		},
	}
}

func commonLogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, text, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}

func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.Default()
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
