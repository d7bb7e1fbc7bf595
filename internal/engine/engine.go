// Package engine implements the Raft Role Engine (spec §4.6), the protocol
// core: the follower/candidate/leader state machine, election, replication,
// commit advancement, snapshot install, the apply loop, read-index reads, and
// joint-consensus reconfiguration. It is built directly against the
// teacher's internal/node/node.go methods (DoElection, SendAppend,
// HandleVote, HandleAppend, commitRecords, reconcileLogs,
// applyCommittedLogs), generalized onto the split-out collaborators
// (logstore, membership, statemachine, rpc.Client) instead of the teacher's
// single monolithic Node struct and direct gRPC calls.
package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/logstore"
	"github.com/btmorr/raftkit/internal/membership"
	"github.com/btmorr/raftkit/internal/persist"
	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftmetrics"
	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/rpc"
	"github.com/btmorr/raftkit/internal/statemachine"
)

// Role mirrors the teacher's Role type (internal/node/node.go), extended
// with Candidate: the teacher treats Candidate as a transient sub-state of
// Follower because it never needed to distinguish them in its public state;
// this engine exposes it directly per spec §4.6.1's transition table.
type Role string

const (
	Follower  Role = "Follower"
	Candidate Role = "Candidate"
	Leader    Role = "Leader"
)

// Config configures a new Engine. It generalizes the teacher's NodeConfig,
// replacing file paths with the already-open collaborators the spec splits
// persistence, log storage, membership, and the state machine into.
type Config struct {
	ID    raftpb.NodeID
	Peers []raftpb.NodeID // full initial membership, including ID

	Persistence  persist.Persistence
	Log          *logstore.Store
	StateMachine statemachine.StateMachine
	Client       rpc.Client

	Metrics  raftmetrics.Sink // nil -> raftmetrics.Noop{}
	Executor raft.Executor    // nil -> raft.NewGoroutineExecutor()

	ElectionTimeoutMin time.Duration // default 150ms
	ElectionTimeoutMax time.Duration // default 300ms
	HeartbeatInterval  time.Duration // default 50ms
	RPCTimeout         time.Duration // default 100ms, mirrors teacher's per-RPC context timeout
	SnapshotChunkSize  int           // default 32KB, per spec §4.6.6
}

func (c *Config) setDefaults() {
	if c.ElectionTimeoutMin == 0 {
		c.ElectionTimeoutMin = 150 * time.Millisecond
	}
	if c.ElectionTimeoutMax == 0 {
		c.ElectionTimeoutMax = 300 * time.Millisecond
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 50 * time.Millisecond
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = 100 * time.Millisecond
	}
	if c.SnapshotChunkSize == 0 {
		c.SnapshotChunkSize = 32 * 1024
	}
	if c.Metrics == nil {
		c.Metrics = raftmetrics.Noop{}
	}
	if c.Executor == nil {
		c.Executor = raft.NewGoroutineExecutor()
	}
}

// pendingCommand is the per-in-flight-command completion table entry from
// spec §3 VolatileState(leader only).
type pendingCommand struct {
	promise *raft.Promise[[]byte]
}

// inboundSnapshot is the follower-side scratch buffer accumulating chunks of
// an in-progress InstallSnapshot transfer (spec §4.6.6): "first chunk...
// creates a scratch snapshot; subsequent chunks must have offset equal to
// cumulative bytes received; metadata fields must match across chunks or the
// partial snapshot is discarded."
type inboundSnapshot struct {
	term              raftpb.Term
	leaderID          raftpb.NodeID
	lastIncludedIndex raftpb.LogIndex
	lastIncludedTerm  raftpb.Term
	buf               []byte
}

// Engine is a single Raft node's protocol core (C6). All mutable state is
// guarded by mu; the engine never performs blocking I/O or RPCs while
// holding it, matching the "single-threaded-logical" model of spec §5.
type Engine struct {
	cfg Config

	mu sync.Mutex

	role        Role
	currentTerm raftpb.Term
	votedFor    raftpb.NodeID
	hasVoted    bool
	leaderHint  raftpb.NodeID

	members *membership.Manager

	commitIndex raftpb.LogIndex
	lastApplied raftpb.LogIndex

	// leader-only volatile state (spec §3)
	nextIndex  map[raftpb.NodeID]raftpb.LogIndex
	matchIndex map[raftpb.NodeID]raftpb.LogIndex
	pending    map[raftpb.LogIndex]*pendingCommand

	// follower-only: in-progress InstallSnapshot transfer, nil when none.
	inbound *inboundSnapshot

	// leader-only: outstanding read-index round, keyed by the read_index
	// value being confirmed (spec §4.6.8, VolatileState leader-only).
	pendingReads map[raftpb.LogIndex][]*raft.Promise[[]byte]

	electionDeadline time.Time
	rng              *rand.Rand

	running   bool
	stopCh    chan struct{}
	applyCh   chan struct{}
	wg        sync.WaitGroup
}

// New constructs an Engine with role Follower and term/vote loaded from
// persistence, mirroring NewNode's "Load persistent Node state" step.
func New(cfg Config) (*Engine, error) {
	cfg.setDefaults()

	term, err := cfg.Persistence.LoadCurrentTerm()
	if err != nil {
		return nil, err
	}
	votedFor, hasVoted, err := cfg.Persistence.LoadVotedFor()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		role:        Follower,
		currentTerm: term,
		votedFor:    votedFor,
		hasVoted:    hasVoted,
		members:     membership.NewManager(cfg.Peers),
		commitIndex: 0,
		lastApplied: 0,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	log.Info().
		Str("id", string(cfg.ID)).
		Uint64("term", uint64(term)).
		Bool("hasVote", hasVoted).
		Msg("engine: loaded persistent state")

	return e, nil
}

// Start begins the election timer and apply loop, registering handlers with
// the RPC server so inbound Raft RPCs reach this engine. It mirrors the
// teacher's StartRaftServer wiring, but the registration itself now goes
// through the abstract rpc.Server contract instead of a concrete grpc.Server.
func (e *Engine) Start(server rpc.Server) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.applyCh = make(chan struct{}, 1)
	e.resetElectionDeadlineLocked()
	e.mu.Unlock()

	if server != nil {
		if err := server.RegisterRequestVoteHandler(e.HandleRequestVote); err != nil {
			return err
		}
		if err := server.RegisterAppendEntriesHandler(e.HandleAppendEntries); err != nil {
			return err
		}
		if err := server.RegisterInstallSnapshotHandler(e.HandleInstallSnapshot); err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}
	}

	e.wg.Add(2)
	go e.timerLoop()
	go e.applyLoop()

	return nil
}

// Stop halts the background loops. Already-issued Completions still deliver
// whatever result they settle to.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role == Leader
}

func (e *Engine) CurrentTerm() raftpb.Term {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTerm
}

// LeaderHint returns the last node this engine believes to be leader, for use
// in NotLeader error messages (spec §7 NotLeader(leader_hint?)).
func (e *Engine) LeaderHint() raftpb.NodeID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderHint
}

// randomElectionTimeout draws uniformly from [min, max] per spec §4.6.10.
func (e *Engine) randomElectionTimeout() time.Duration {
	span := e.cfg.ElectionTimeoutMax - e.cfg.ElectionTimeoutMin
	if span <= 0 {
		return e.cfg.ElectionTimeoutMin
	}
	return e.cfg.ElectionTimeoutMin + time.Duration(e.rng.Int63n(int64(span)))
}

// resetElectionDeadlineLocked must be called with mu held. It mirrors
// resetElectionTimer, minus the teacher's channel-based signalling (this
// engine uses a polled deadline instead of a reset channel, since there is no
// separate StateManager goroutine to notify).
func (e *Engine) resetElectionDeadlineLocked() {
	e.electionDeadline = time.Now().Add(e.randomElectionTimeout())
}

// timerLoop polls the election deadline and, while leader, sends periodic
// heartbeats, mirroring the teacher's timer goroutine that drives DoElection
// and SendAppend on a schedule.
func (e *Engine) timerLoop() {
	defer e.wg.Done()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	var lastHeartbeat time.Time
	for {
		select {
		case <-e.stopCh:
			return
		case <-tick.C:
			e.CheckElectionTimeout()

			e.mu.Lock()
			isLeader := e.role == Leader
			interval := e.cfg.HeartbeatInterval
			e.mu.Unlock()

			if isLeader && time.Since(lastHeartbeat) >= interval {
				lastHeartbeat = time.Now()
				e.replicateToAll()
			}
		}
	}
}

// CheckElectionTimeout is the test hook from spec §4.10: it transitions to
// Candidate and starts an election if the deadline has elapsed. Exposed
// publicly so tests can drive elections deterministically instead of relying
// on the background ticker.
func (e *Engine) CheckElectionTimeout() {
	e.mu.Lock()
	if e.role == Leader || time.Now().Before(e.electionDeadline) {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.startElection()
}

// signalApply wakes the apply loop; it is non-blocking, matching the
// "background task advances last_applied" description in spec §4.6.7 without
// needing the apply loop to poll on a tight ticker.
func (e *Engine) signalApply() {
	select {
	case e.applyCh <- struct{}{}:
	default:
	}
}
