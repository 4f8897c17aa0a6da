// Package events implements the bounded broadcast event bus that
// coordinates every consensus component, grounded on
// `vrrb_core/src/events_router.rs::EventRouter`, adapted from an async
// mpsc fan-out into typed Go channels.
package events

import (
	"context"
	"sync"
)

// Topic partitions subscribers so a component only receives the events it
// asked for.
type Topic string

const (
	TopicControl      Topic = "control"
	TopicTransactions Topic = "transactions"
	TopicClaims       Topic = "claims"
	TopicDkg          Topic = "dkg"
	TopicBlocks       Topic = "blocks"
	TopicQuorum       Topic = "quorum"
)

// Kind enumerates the event payload carried on the bus, matching the
// event catalogue in spec §6 plus the DKG/claim/block events it names.
type Kind string

const (
	KindStop                          Kind = "Stop"
	KindClaimCreated                  Kind = "ClaimCreated"
	KindPartCommitmentCreated         Kind = "PartCommitmentCreated"
	KindPartCommitmentAcknowledged    Kind = "PartCommitmentAcknowledged"
	KindTxnAddedToMempool             Kind = "TxnAddedToMempool"
	KindMempoolSizeThresholdReached   Kind = "MempoolSizeThresholdReached"
	KindVote                         Kind = "Vote"
	KindTransactionCertificateCreated Kind = "TransactionCertificateCreated"
	KindProposalBlockCreated          Kind = "ProposalBlockCreated"
	KindConvergenceCertificateCreated Kind = "ConvergenceCertificateCreated"
	KindConvergenceBlockCreated       Kind = "ConvergenceBlockCreated"
	KindQuorumMembershipAssignment    Kind = "QuorumMembershipAssignmentCreated"
	KindUpdateAccount                 Kind = "UpdateAccount"
	KindAccountCreated                Kind = "AccountCreated"
)

// Event is a tagged payload placed on the bus. Payload is left as `any`
// and type-asserted by subscribers, matching the sum-type-over-free-data
// redesign this codebase applies elsewhere (see REDESIGN FLAGS notes in
// DESIGN.md) in place of a closed enum per event kind.
type Event struct {
	Kind    Kind
	Payload any
}

// Subscriber is the channel a component reads its subscribed events from.
type Subscriber chan Event

// Bus is an in-process, topic-partitioned broadcast router. Each Publish
// call fans the event out to every subscriber of the given topic; a full
// subscriber channel drops the event for that subscriber rather than
// blocking the publisher, matching the original's behavior of retiring a
// subscriber whose channel has closed.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic][]Subscriber
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Topic][]Subscriber)}
}

// Subscribe registers a new buffered subscriber channel for topic and
// returns it for the caller to range over.
func (b *Bus) Subscribe(topic Topic, bufferSize int) Subscriber {
	sub := make(Subscriber, bufferSize)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()
	return sub
}

// Publish fans ev out to every subscriber of topic. Non-blocking: a
// subscriber that cannot accept the event immediately has it dropped.
// The returned counts report deliveries and drops; this package does not
// log them (kept dependency-free of the logging layer).
func (b *Bus) Publish(topic Topic, ev Event) (delivered, dropped int) {
	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- ev:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Run drains ctx-scoped control events published on TopicControl until a
// KindStop event arrives or ctx is cancelled, mirroring
// `EventRouter::start`'s control loop in the original source.
func (b *Bus) Run(ctx context.Context, control Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-control:
			if !ok || ev.Kind == KindStop {
				return
			}
		}
	}
}
