package main

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/pkg/logger"
)

// outcome receives the final event of a run.
type outcome struct {
	report *auditor.Report
	err    error
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan auditor.Event, log *slog.Logger, out *outcome) func() {
	return auditor.NewSubscriber(events,
		auditor.OnAuditStarted(func(event auditor.AuditStarted) {
			attrs := []any{
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Uint64("fromBlock", event.FromBlock),
			}
			if event.ToBlock != nil {
				attrs = append(attrs, slog.Uint64("toBlock", *event.ToBlock))
			}
			log.InfoContext(ctx, "Audit started", attrs...)
		}),
		auditor.OnNodeStale(func(event auditor.NodeStale) {
			log.WarnContext(ctx, "Node may not be synced",
				slog.Uint64("latestBlock", event.LatestBlock),
				slog.String("latestBlockAge", humanize.Time(event.LatestTime)),
				slog.Duration("maxAge", event.MaxAge),
			)
		}),
		auditor.OnEventsFetched(func(event auditor.EventsFetched) {
			log.InfoContext(ctx, "Governance events fetched", slog.Int("count", event.Count))
		}),
		auditor.OnEventDropped(func(event auditor.EventDropped) {
			log.DebugContext(ctx, "Event from unregistered contract dropped",
				slog.Uint64("block", event.Block),
				slog.String("address", event.Address.Hex()),
				slog.String("event", event.Name),
			)
		}),
		auditor.OnKeyChangeApplied(func(event auditor.KeyChangeApplied) {
			log.DebugContext(ctx, "Key change",
				slog.Uint64("block", event.Block),
				slog.String("action", event.Action),
				slog.String("key", event.Key.Hex()),
				slog.Bool("changed", event.Changed),
			)
		}),
		auditor.OnKeyChangeIgnored(func(event auditor.KeyChangeIgnored) {
			log.WarnContext(ctx, "Key change ignored",
				slog.Uint64("block", event.Block),
				slog.String("action", event.Action),
				slog.String("key", event.Key.Hex()),
			)
		}),
		auditor.OnVoterSetReplaced(func(event auditor.VoterSetReplaced) {
			log.DebugContext(ctx, "Voter set replaced",
				slog.Uint64("block", event.Block),
				slog.Int("voters", len(event.Voters)),
			)
		}),
		auditor.OnPendingSetBuffered(func(event auditor.PendingSetBuffered) {
			log.DebugContext(ctx, "Pending validator set buffered",
				slog.Uint64("block", event.Block),
				slog.String("parentHash", event.ParentHash.Hex()),
				slog.Int("candidates", len(event.Candidates)),
			)
		}),
		auditor.OnPendingSetResolved(func(event auditor.PendingSetResolved) {
			log.DebugContext(ctx, "Pending validator set applied",
				slog.Uint64("block", event.Block),
				slog.Int("voters", len(event.Voters)),
			)
		}),
		auditor.OnBallotSkipped(func(event auditor.BallotSkipped) {
			log.DebugContext(ctx, "Ballot skipped",
				slog.Uint64("block", event.Block),
				slog.String("ballot", event.Ballot.ID.String()),
				slog.String("reason", event.Reason),
			)
		}),
		auditor.OnBallotTallied(func(event auditor.BallotTallied) {
			log.DebugContext(ctx, "Ballot tallied",
				slog.Uint64("block", event.Block),
				slog.String("ballot", event.Ballot.ID.String()),
				slog.Int("eligible", event.Eligible),
				slog.Int("voted", event.Voted),
			)
		}),
		auditor.OnUnexpectedVoter(func(event auditor.UnexpectedVoter) {
			log.WarnContext(ctx, "Vote from a key outside the voter set",
				slog.String("ballot", event.BallotID.String()),
				slog.String("voter", event.Voter.Hex()),
			)
		}),
		auditor.OnDuplicateVote(func(event auditor.DuplicateVote) {
			log.WarnContext(ctx, "Duplicate vote",
				slog.String("ballot", event.BallotID.String()),
				slog.String("voter", event.Voter.Hex()),
			)
		}),
		auditor.OnEnrichmentFailed(func(event auditor.EnrichmentFailed) {
			log.DebugContext(ctx, "Validator identity unavailable",
				slog.String("voter", event.Voter.Hex()),
				slog.Any("error", event.Err),
			)
		}),
		auditor.OnAuditCompleted(func(event auditor.AuditCompleted) {
			log.InfoContext(ctx, "Audit completed",
				slog.Int("ballots", event.Report.Ballots),
				slog.Int("voters", len(event.Report.Lines)),
				slog.Duration("duration", event.Duration),
			)
			out.report = event.Report
		}),
		auditor.OnAuditFailed(func(event auditor.AuditFailed) {
			log.ErrorContext(ctx, "Audit failed", slog.Any("error", event.Err))
			out.err = event.Err
		}),
	)
}
