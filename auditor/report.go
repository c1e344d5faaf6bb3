package auditor

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
)

var reportHeader = fmt.Sprintf("%14s  %-42s  %-42s  %s", "Missed", "Voting key", "Mining key", "Name")

// ReportLine is the final record of one voter.
type ReportLine struct {
	Voter     common.Address
	MiningKey *common.Address
	Name      string
	Eligible  uint64
	Voted     uint64
}

func (l ReportLine) Missed() uint64 {
	return l.Eligible - l.Voted
}

// Participation is voted/eligible, or 1 for a voter never eligible.
func (l ReportLine) Participation() float64 {
	return VoterStat{BallotsEligible: l.Eligible, BallotsVoted: l.Voted}.Participation()
}

// Resolved reports whether the voter's identity is known.
func (l ReportLine) Resolved() bool {
	return l.MiningKey != nil && l.Name != ""
}

// perMille is the participation in thousandths, rounded down.
func (l ReportLine) perMille() uint64 {
	if l.Eligible == 0 {
		return 1000
	}
	return l.Voted * 1000 / l.Eligible
}

// Report is the ordered outcome of an audit run.
type Report struct {
	Lines     []ReportLine
	Ballots   int
	FromBlock uint64
	ToBlock   uint64
}

// NewReport builds a report from frozen stats, ordered by ascending
// participation, then ascending misses, then address.
func NewReport(stats *Stats, fromBlock, toBlock uint64) *Report {
	lines := make([]ReportLine, 0, stats.Len())
	for _, voter := range stats.Voters() {
		vs, _ := stats.Get(voter)
		line := ReportLine{
			Voter:     voter,
			MiningKey: vs.MiningKey,
			Eligible:  vs.BallotsEligible,
			Voted:     vs.BallotsVoted,
		}
		if vs.Identity != nil {
			line.Name = vs.Identity.DisplayName()
		}
		lines = append(lines, line)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return compareLines(lines[i], lines[j]) < 0
	})

	return &Report{
		Lines:     lines,
		Ballots:   stats.Ballots(),
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	}
}

func compareLines(a, b ReportLine) int {
	if c := compareParticipation(a, b); c != 0 {
		return c
	}
	switch {
	case a.Missed() < b.Missed():
		return -1
	case a.Missed() > b.Missed():
		return 1
	}
	return bytes.Compare(a.Voter[:], b.Voter[:])
}

// compareParticipation compares voted/eligible exactly by cross multiplication.
func compareParticipation(a, b ReportLine) int {
	an, ad := a.Voted, a.Eligible
	if ad == 0 {
		an, ad = 1, 1
	}
	bn, bd := b.Voted, b.Eligible
	if bd == 0 {
		bn, bd = 1, 1
	}
	lhsHi, lhsLo := bits.Mul64(an, bd)
	rhsHi, rhsLo := bits.Mul64(bn, ad)
	switch {
	case lhsHi < rhsHi, lhsHi == rhsHi && lhsLo < rhsLo:
		return -1
	case lhsHi > rhsHi, lhsHi == rhsHi && lhsLo > rhsLo:
		return 1
	}
	return 0
}

// RenderOptions controls text output.
type RenderOptions struct {
	Color             bool
	IncludeUnresolved bool
}

// Render writes the header, one line per voter and a summary footer.
// Voters without a resolved identity are left out unless IncludeUnresolved is set.
func (r *Report) Render(w io.Writer, opts RenderOptions) error {
	bold := newColor(opts.Color, color.Bold)
	if _, err := fmt.Fprintln(w, bold.Sprint(reportHeader)); err != nil {
		return err
	}

	shown := 0
	for _, line := range r.Lines {
		if !line.Resolved() && !opts.IncludeUnresolved {
			continue
		}
		text := formatLine(line)
		if _, err := fmt.Fprintln(w, bandColor(line.perMille(), opts.Color).Sprint(text)); err != nil {
			return err
		}
		shown++
	}

	_, err := fmt.Fprintf(w, "\n%s ballots, %s of %s voters shown, blocks #%s to #%s\n",
		humanize.Comma(int64(r.Ballots)),
		humanize.Comma(int64(shown)),
		humanize.Comma(int64(len(r.Lines))),
		humanize.Comma(int64(r.FromBlock)),
		humanize.Comma(int64(r.ToBlock)),
	)
	return err
}

// String renders the report without colour.
func (r *Report) String() string {
	var sb strings.Builder
	_ = r.Render(&sb, RenderOptions{})
	return sb.String()
}

func formatLine(l ReportLine) string {
	mining, name := "-", "-"
	if l.MiningKey != nil {
		mining = l.MiningKey.Hex()
	}
	if l.Name != "" {
		name = l.Name
	}
	return fmt.Sprintf("%7s,%5.1f%%  %s  %s  %s",
		fmt.Sprintf("%d/%d", l.Missed(), l.Eligible),
		100-float64(l.perMille())/10,
		l.Voter.Hex(),
		mining,
		name,
	)
}

func bandColor(perMille uint64, enabled bool) *color.Color {
	switch {
	case perMille <= 500:
		return newColor(enabled, color.FgHiRed)
	case perMille <= 750:
		return newColor(enabled, color.FgHiYellow)
	case perMille < 1000:
		return newColor(enabled, color.FgWhite)
	default:
		return newColor(enabled, color.FgHiGreen)
	}
}

func newColor(enabled bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}
