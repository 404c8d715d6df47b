package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	opsgate "github.com/operify/opsgate/src"
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
)

var buildVersion = "dev"
var buildCommit = "dirty"

type CLI struct {
	Debug bool              `arg:"--debug" help:"debugging output"`
	Start *opsgate.StartCmd `arg:"subcommand:start"`
}

func (CLI) Version() string {
	return fmt.Sprintf("opsgate %s (%s)", buildVersion, buildCommit)
}

func main() {
	args := &CLI{}
	parser, err := arg.NewParser(arg.Config{}, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	abort(parser, parser.Parse(os.Args[1:]))

	logger := config.ConfigureLogger(args.Debug)

	domain.BuildInfo.Version = buildVersion
	domain.BuildInfo.Commit = buildCommit

	switch {
	case args.Start != nil:
		abort(parser, args.Start.Run(logger))
	default:
		parser.WriteHelp(os.Stderr)
	}
}

func abort(parser *arg.Parser, err error) {
	switch err {
	case nil:
		return
	case arg.ErrHelp:
		parser.WriteHelp(os.Stderr)
		os.Exit(0)
	case arg.ErrVersion:
		fmt.Fprintf(os.Stdout, "%s (%s)\n", buildVersion, buildCommit)
		os.Exit(0)
	default:
		fmt.Fprint(os.Stderr, err, "\n")
		os.Exit(1)
	}
}
