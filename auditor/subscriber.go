package auditor

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                      chan struct{}
	auditStartedHandler       func(AuditStarted)
	nodeStaleHandler          func(NodeStale)
	eventsFetchedHandler      func(EventsFetched)
	eventDroppedHandler       func(EventDropped)
	keyChangeAppliedHandler   func(KeyChangeApplied)
	keyChangeIgnoredHandler   func(KeyChangeIgnored)
	voterSetReplacedHandler   func(VoterSetReplaced)
	pendingSetBufferedHandler func(PendingSetBuffered)
	pendingSetResolvedHandler func(PendingSetResolved)
	ballotSkippedHandler      func(BallotSkipped)
	ballotTalliedHandler      func(BallotTallied)
	unexpectedVoterHandler    func(UnexpectedVoter)
	duplicateVoteHandler      func(DuplicateVote)
	enrichmentFailedHandler   func(EnrichmentFailed)
	auditCompletedHandler     func(AuditCompleted)
	auditFailedHandler        func(AuditFailed)
}

// OnAuditStarted sets the handler for AuditStarted events
func OnAuditStarted(fn func(AuditStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.auditStartedHandler = fn }
}

// OnNodeStale sets the handler for NodeStale events
func OnNodeStale(fn func(NodeStale)) func(*Subscriber) {
	return func(s *Subscriber) { s.nodeStaleHandler = fn }
}

// OnEventsFetched sets the handler for EventsFetched events
func OnEventsFetched(fn func(EventsFetched)) func(*Subscriber) {
	return func(s *Subscriber) { s.eventsFetchedHandler = fn }
}

// OnEventDropped sets the handler for EventDropped events
func OnEventDropped(fn func(EventDropped)) func(*Subscriber) {
	return func(s *Subscriber) { s.eventDroppedHandler = fn }
}

// OnKeyChangeApplied sets the handler for KeyChangeApplied events
func OnKeyChangeApplied(fn func(KeyChangeApplied)) func(*Subscriber) {
	return func(s *Subscriber) { s.keyChangeAppliedHandler = fn }
}

// OnKeyChangeIgnored sets the handler for KeyChangeIgnored events
func OnKeyChangeIgnored(fn func(KeyChangeIgnored)) func(*Subscriber) {
	return func(s *Subscriber) { s.keyChangeIgnoredHandler = fn }
}

// OnVoterSetReplaced sets the handler for VoterSetReplaced events
func OnVoterSetReplaced(fn func(VoterSetReplaced)) func(*Subscriber) {
	return func(s *Subscriber) { s.voterSetReplacedHandler = fn }
}

// OnPendingSetBuffered sets the handler for PendingSetBuffered events
func OnPendingSetBuffered(fn func(PendingSetBuffered)) func(*Subscriber) {
	return func(s *Subscriber) { s.pendingSetBufferedHandler = fn }
}

// OnPendingSetResolved sets the handler for PendingSetResolved events
func OnPendingSetResolved(fn func(PendingSetResolved)) func(*Subscriber) {
	return func(s *Subscriber) { s.pendingSetResolvedHandler = fn }
}

// OnBallotSkipped sets the handler for BallotSkipped events
func OnBallotSkipped(fn func(BallotSkipped)) func(*Subscriber) {
	return func(s *Subscriber) { s.ballotSkippedHandler = fn }
}

// OnBallotTallied sets the handler for BallotTallied events
func OnBallotTallied(fn func(BallotTallied)) func(*Subscriber) {
	return func(s *Subscriber) { s.ballotTalliedHandler = fn }
}

// OnUnexpectedVoter sets the handler for UnexpectedVoter events
func OnUnexpectedVoter(fn func(UnexpectedVoter)) func(*Subscriber) {
	return func(s *Subscriber) { s.unexpectedVoterHandler = fn }
}

// OnDuplicateVote sets the handler for DuplicateVote events
func OnDuplicateVote(fn func(DuplicateVote)) func(*Subscriber) {
	return func(s *Subscriber) { s.duplicateVoteHandler = fn }
}

// OnEnrichmentFailed sets the handler for EnrichmentFailed events
func OnEnrichmentFailed(fn func(EnrichmentFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.enrichmentFailedHandler = fn }
}

// OnAuditCompleted sets the handler for AuditCompleted events
func OnAuditCompleted(fn func(AuditCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.auditCompletedHandler = fn }
}

// OnAuditFailed sets the handler for AuditFailed events
func OnAuditFailed(fn func(AuditFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.auditFailedHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Example:
//
//	closer := auditor.NewSubscriber(events,
//	  auditor.OnAuditCompleted(func(e AuditCompleted) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
//
// The subscriber processes events until the events channel closes,
// then the closer function confirms all processing is complete.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                      make(chan struct{}),
		auditStartedHandler:       func(AuditStarted) {},       // nop by default
		nodeStaleHandler:          func(NodeStale) {},          // nop by default
		eventsFetchedHandler:      func(EventsFetched) {},      // nop by default
		eventDroppedHandler:       func(EventDropped) {},       // nop by default
		keyChangeAppliedHandler:   func(KeyChangeApplied) {},   // nop by default
		keyChangeIgnoredHandler:   func(KeyChangeIgnored) {},   // nop by default
		voterSetReplacedHandler:   func(VoterSetReplaced) {},   // nop by default
		pendingSetBufferedHandler: func(PendingSetBuffered) {}, // nop by default
		pendingSetResolvedHandler: func(PendingSetResolved) {}, // nop by default
		ballotSkippedHandler:      func(BallotSkipped) {},      // nop by default
		ballotTalliedHandler:      func(BallotTallied) {},      // nop by default
		unexpectedVoterHandler:    func(UnexpectedVoter) {},    // nop by default
		duplicateVoteHandler:      func(DuplicateVote) {},      // nop by default
		enrichmentFailedHandler:   func(EnrichmentFailed) {},   // nop by default
		auditCompletedHandler:     func(AuditCompleted) {},     // nop by default
		auditFailedHandler:        func(AuditFailed) {},        // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			s.dispatch(ev)
		}
	}()

	return func() {
		<-s.done
	}
}

func (s *Subscriber) dispatch(ev Event) {
	switch e := ev.(type) {
	case AuditStarted:
		s.auditStartedHandler(e)
	case NodeStale:
		s.nodeStaleHandler(e)
	case EventsFetched:
		s.eventsFetchedHandler(e)
	case EventDropped:
		s.eventDroppedHandler(e)
	case KeyChangeApplied:
		s.keyChangeAppliedHandler(e)
	case KeyChangeIgnored:
		s.keyChangeIgnoredHandler(e)
	case VoterSetReplaced:
		s.voterSetReplacedHandler(e)
	case PendingSetBuffered:
		s.pendingSetBufferedHandler(e)
	case PendingSetResolved:
		s.pendingSetResolvedHandler(e)
	case BallotSkipped:
		s.ballotSkippedHandler(e)
	case BallotTallied:
		s.ballotTalliedHandler(e)
	case UnexpectedVoter:
		s.unexpectedVoterHandler(e)
	case DuplicateVote:
		s.duplicateVoteHandler(e)
	case EnrichmentFailed:
		s.enrichmentFailedHandler(e)
	case AuditCompleted:
		s.auditCompletedHandler(e)
	case AuditFailed:
		s.auditFailedHandler(e)
	}
}
