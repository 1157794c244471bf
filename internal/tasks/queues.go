package tasks

import (
	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/queue"
)

// DefaultQueueCapacity bounds every pipeline queue.
const DefaultQueueCapacity = 256

// Queues holds every inter-task queue of the pipeline:
// listener -> qAll -> sorter -> (qKeepalive | qCmdResp | qStream) and
// sorter -> qClientEvents -> notifier, plus the outbound qCommands feeding
// the Commander from both the public API and the Classifier.
type Queues struct {
	All          *queue.Queue[linkproto.Packet]
	Keepalive    *queue.Queue[linkproto.Packet]
	CmdResp      *queue.Queue[linkproto.Packet]
	Stream       *queue.Queue[linkproto.StreamSample]
	Commands     *queue.Queue[linkproto.Opcode]
	ClientEvents *queue.Queue[linkproto.Packet]
}

// NewQueues allocates every queue with the given capacity.
func NewQueues(capacity int) *Queues {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queues{
		All:          queue.New[linkproto.Packet](capacity),
		Keepalive:    queue.New[linkproto.Packet](capacity),
		CmdResp:      queue.New[linkproto.Packet](capacity),
		Stream:       queue.New[linkproto.StreamSample](capacity),
		Commands:     queue.New[linkproto.Opcode](capacity),
		ClientEvents: queue.New[linkproto.Packet](capacity),
	}
}
