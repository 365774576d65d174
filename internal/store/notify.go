package store

import (
	"strings"
	"sync"
)

// notifier owns subscriptions and fan-out for a store. Each subscriber gets
// its own delivery goroutine with an ordered queue, so a slow consumer never
// blocks a commit or sees writes out of commit order.
type notifier struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]*subscriber
	stopped bool
}

type subscriber struct {
	path       string
	collection bool
	deliver    func(any)

	mu     sync.Mutex
	queue  []any
	wake   chan struct{}
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

func (n *notifier) subscribe(path string, collection bool, deliver func(any)) (*subscriber, Unsubscribe) {
	s := &subscriber{
		path:       path,
		collection: collection,
		deliver:    deliver,
		wake:       make(chan struct{}, 1),
	}
	go s.run()

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = s
	n.mu.Unlock()

	return s, func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
		s.stop()
	}
}

// publishDoc queues snap for every doc subscriber on snap.Path.
func (n *notifier) publishDoc(snap Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.subs {
		if !s.collection && s.path == snap.Path {
			s.push(snap)
		}
	}
}

// publishCollection queues the collection state for subscribers whose
// collection contains the changed path. current must return the membership
// as of this commit.
func (n *notifier) publishCollection(changedPath string, current func(collection string) CollectionSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.subs {
		if s.collection && isDirectChild(s.path, changedPath) {
			s.push(current(s.path))
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[int]*subscriber)
	n.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

// isDirectChild reports whether path sits immediately under collection.
func isDirectChild(collection, path string) bool {
	rest, ok := strings.CutPrefix(path, collection+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

func (s *subscriber) push(ev any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, ev)
	// Non-blocking nudge; wake is closed only under this same lock.
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for range s.wake {
		for {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.deliver(ev)
		}
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.wake)
}
