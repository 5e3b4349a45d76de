package plugin

import (
	"context"
	"sync"

	"github.com/cyclopcam/logs"
)

const notifyQueueSize = 64

// Notifier delivers events to subscribed plugins from a single background worker, so
// callers on the frame loop never wait for a plugin process.
type Notifier struct {
	manager  *Manager
	executor *Executor
	log      logs.Log

	mu     sync.Mutex
	closed bool
	queue  chan Request
	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context

	// OnResult, when set, is called after each plugin run on the worker goroutine.
	// Set it before the first Notify.
	OnResult func(p *Plugin, req Request, resp *Response, err error)
}

// NewNotifier starts the delivery worker.
func NewNotifier(manager *Manager, executor *Executor, log logs.Log) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		manager:  manager,
		executor: executor,
		log:      log,
		queue:    make(chan Request, notifyQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Notify queues req for every plugin subscribed to req.Event. It reports false when the queue
// is full and the event was dropped.
func (n *Notifier) Notify(req Request) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	select {
	case n.queue <- req:
		return true
	default:
		n.log.Warnf("Plugin queue full, dropping %s event for session %s", req.Event, req.SessionID)
		return false
	}
}

// Close delivers queued events and stops the worker.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	n.wg.Wait()
	n.cancel()
}

// Abort kills in-flight plugins, skips queued events and stops the worker.
func (n *Notifier) Abort() {
	n.cancel()
	n.Close()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for req := range n.queue {
		for _, p := range n.manager.Subscribers(req.Event) {
			if n.ctx.Err() != nil {
				break
			}
			r := req
			resp, err := n.executor.Execute(n.ctx, p, &r)
			switch {
			case err != nil:
				n.log.Warnf("Plugin %s failed on %s: %v", p.Manifest.Name, req.Event, err)
			case !resp.Success:
				n.log.Warnf("Plugin %s rejected %s: %s", p.Manifest.Name, req.Event, resp.Error)
			default:
				n.log.Debugf("Plugin %s handled %s", p.Manifest.Name, req.Event)
			}
			if n.OnResult != nil {
				n.OnResult(p, r, resp, err)
			}
		}
	}
}
