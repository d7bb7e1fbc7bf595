package node

import (
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/engine"
	"github.com/btmorr/raftkit/internal/logstore"
	"github.com/btmorr/raftkit/internal/persist"
	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/rpc/grpctransport"
	"github.com/btmorr/raftkit/internal/statemachine"
)

// Node is one member of a raft cluster (C10), composing the protocol core
// (internal/engine), durable storage (internal/persist, internal/logstore),
// the gRPC transport (internal/rpc/grpctransport), and a state machine,
// instead of the teacher's single monolithic Node struct.
type Node struct {
	config Config

	eng          *engine.Engine
	persistence  persist.Persistence
	log          *logstore.Store
	stateMachine statemachine.StateMachine
	client       *grpctransport.Client
	server       *grpctransport.Server
	listener     net.Listener
}

// NewNode initializes a Node with a randomized election timeout, loading
// persistent state the way the teacher's NewNode loads term/log files before
// constructing anything else.
func NewNode(config Config, sm statemachine.StateMachine) (*Node, error) {
	if sm == nil {
		sm = statemachine.NewKVStore()
	}

	var p persist.Persistence
	var err error
	if config.UseBolt {
		p, err = persist.OpenBolt(config.DataDir + "/raftkit.db")
	} else {
		p, err = persist.Open(config.DataDir)
	}
	if err != nil {
		return nil, err
	}

	store := logstore.Open(p)

	selfID := raftpb.NodeID(config.Id)
	peers := []raftpb.NodeID{selfID}
	addrs := map[raftpb.NodeID]string{}
	for _, id := range config.NodeIds {
		peers = append(peers, raftpb.NodeID(id))
	}
	for id, addr := range config.PeerAddrs {
		addrs[raftpb.NodeID(id)] = addr
	}

	client := grpctransport.NewClient(addrs)

	lis, err := net.Listen("tcp", config.Id)
	if err != nil {
		p.Close()
		return nil, err
	}
	server := grpctransport.NewServer(lis)

	eng, err := engine.New(engine.Config{
		ID:                 selfID,
		Peers:              peers,
		Persistence:        p,
		Log:                store,
		StateMachine:       sm,
		Client:             client,
		ElectionTimeoutMin: config.ElectionTimeoutMin,
		ElectionTimeoutMax: config.ElectionTimeoutMax,
		HeartbeatInterval:  config.HeartbeatInterval,
		RPCTimeout:         config.RPCTimeout,
		SnapshotChunkSize:  config.SnapshotChunkSize,
	})
	if err != nil {
		lis.Close()
		p.Close()
		return nil, err
	}

	log.Info().Str("id", config.Id).Int("nPeers", len(peers)).Msg("node: initialized")

	return &Node{
		config:       config,
		eng:          eng,
		persistence:  p,
		log:          store,
		stateMachine: sm,
		client:       client,
		server:       server,
		listener:     lis,
	}, nil
}

// Start registers the engine's RPC handlers and begins the election timer,
// apply loop, and gRPC server, mirroring the teacher's raftserver.StartRaftServer
// call from main().
func (n *Node) Start() error {
	return n.eng.Start(n.server)
}

// Stop halts the engine's background loops, the gRPC server, outbound client
// connections, and durable storage, in that order.
func (n *Node) Stop() error {
	if err := n.eng.Stop(); err != nil {
		return err
	}
	if err := n.server.Stop(); err != nil {
		return err
	}
	if err := n.client.Close(); err != nil {
		return err
	}
	return n.persistence.Close()
}

func (n *Node) IsRunning() bool           { return n.eng.IsRunning() }
func (n *Node) IsLeader() bool            { return n.eng.IsLeader() }
func (n *Node) CurrentTerm() raftpb.Term  { return n.eng.CurrentTerm() }
func (n *Node) LeaderHint() raftpb.NodeID { return n.eng.LeaderHint() }

// CheckElectionTimeout is the deterministic test hook of spec §4.10.
func (n *Node) CheckElectionTimeout() { n.eng.CheckElectionTimeout() }

// SubmitCommand appends payload to the log and waits for it to commit and
// apply, returning the state machine's result bytes.
func (n *Node) SubmitCommand(payload []byte, timeout time.Duration) *raft.Completion[[]byte] {
	return n.eng.SubmitCommand(payload, timeout)
}

// ReadState serves a linearizable read via the read-index protocol (§4.6.8).
func (n *Node) ReadState(timeout time.Duration) *raft.Completion[[]byte] {
	return n.eng.ReadState(timeout)
}

// SubmitConfigurationChange drives a joint-consensus membership change
// (§4.6.9) to newMembers. addrs gives the dial address for any member of
// newMembers this Node's transport does not already have one for (e.g. a
// brand new node being added); it may be nil when only removing members.
func (n *Node) SubmitConfigurationChange(newMembers []string, addrs map[string]string, timeout time.Duration) *raft.Completion[raftpb.ClusterConfig] {
	ids := make([]raftpb.NodeID, len(newMembers))
	for i, m := range newMembers {
		ids[i] = raftpb.NodeID(m)
	}
	var addrIDs map[raftpb.NodeID]string
	if len(addrs) > 0 {
		addrIDs = make(map[raftpb.NodeID]string, len(addrs))
		for id, addr := range addrs {
			addrIDs[raftpb.NodeID(id)] = addr
		}
	}
	return n.eng.SubmitConfigurationChange(ids, addrIDs, timeout)
}

// StateMachine exposes the underlying state machine for direct reads. The
// HTTP surface's GET handler uses it only to check whether it is a KVStore;
// its reads still go through a full read-index round.
func (n *Node) StateMachine() statemachine.StateMachine { return n.stateMachine }
