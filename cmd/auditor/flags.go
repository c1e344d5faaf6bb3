package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/cmd/auditor/config"
)

var (
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "More detailed output",
	}
	contractsFlag = &cli.StringFlag{
		Name:    "contracts",
		Aliases: []string{"c"},
		Usage:   "JSON file with the contract addresses",
	}
	periodFlag = &cli.StringFlag{
		Name:    "period",
		Aliases: []string{"p"},
		Usage:   "Only count ballots created within this period, e.g. '5 days' or '2 months'",
	}
	blockFlag = &cli.Uint64Flag{
		Name:    "block",
		Aliases: []string{"b"},
		Usage:   "Only count ballots created at or after this block",
	}
	toBlockFlag = &cli.Uint64Flag{
		Name:  "to-block",
		Usage: "Stop the replay at this block instead of the latest one",
	}
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}
	allFlag = &cli.BoolFlag{
		Name:  "all",
		Usage: "Also list voters whose identity could not be resolved",
	}
)

var appFlags = []cli.Flag{
	verboseFlag,
	contractsFlag,
	periodFlag,
	blockFlag,
	toBlockFlag,
	noColorFlag,
	allFlag,
}

// runFlags is the parsed command line, with environment defaults applied.
type runFlags struct {
	URL       string
	Contracts string
	Verbose   bool
	Period    time.Duration
	MinBlock  uint64
	ToBlock   *uint64
	NoColor   bool
	All       bool
}

func readFlags(c *cli.Context, cfg config.Config) (runFlags, error) {
	f := runFlags{
		URL:       cfg.RPCURL,
		Contracts: cfg.ContractsFile,
		Verbose:   c.Bool(verboseFlag.Name),
		MinBlock:  c.Uint64(blockFlag.Name),
		NoColor:   c.Bool(noColorFlag.Name),
		All:       c.Bool(allFlag.Name),
	}

	if c.NArg() > 1 {
		return runFlags{}, fmt.Errorf("expected at most one URL, got %d arguments", c.NArg())
	}
	if c.NArg() == 1 {
		f.URL = c.Args().First()
	}
	if c.IsSet(contractsFlag.Name) {
		f.Contracts = c.String(contractsFlag.Name)
	}
	if c.IsSet(periodFlag.Name) {
		period, err := config.ParsePeriod(c.String(periodFlag.Name))
		if err != nil {
			return runFlags{}, err
		}
		f.Period = period
	}
	if c.IsSet(toBlockFlag.Name) {
		n := c.Uint64(toBlockFlag.Name)
		f.ToBlock = &n
	}
	return f, nil
}

// serviceOptions translates the flags into audit options. now anchors --period.
func (f runFlags) serviceOptions(cfg config.Config, now time.Time) []auditor.Option {
	tally := auditor.TallyConfig{MinBlock: f.MinBlock}
	if f.Period > 0 {
		tally.MinTime = now.Add(-f.Period)
	}

	opts := []auditor.Option{
		auditor.WithTallyConfig(tally),
		auditor.WithMaxBlockAge(cfg.MaxBlockAge),
		auditor.WithVoteConcurrency(cfg.VoteConcurrency),
	}
	if f.ToBlock != nil {
		opts = append(opts, auditor.WithToBlock(*f.ToBlock))
	}
	return opts
}
