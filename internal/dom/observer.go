package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// MutationType discriminates mutation records.
type MutationType int

const (
	// ChildListMutation signals added or removed children under Target.
	ChildListMutation MutationType = iota
	// AttributeMutation signals a changed attribute on Target.
	AttributeMutation
)

// Mutation is one observed change to the tree.
type Mutation struct {
	Type   MutationType
	Target *Node
	Attr   string // attribute name for AttributeMutation
}

// ObserveOptions mirror the observer configuration of a browser mutation
// observer: child-list changes, subtree scoping, and a narrow attribute
// filter.
type ObserveOptions struct {
	ChildList       bool
	Subtree         bool
	Attributes      bool
	AttributeFilter []string // empty means all attributes when Attributes is set
}

// Observer accumulates mutation records and signals availability through a
// capacity-one channel. Callers drain with Take; bursts coalesce into a
// single pending batch, which is what the engine's debouncing expects.
type Observer struct {
	doc    *Document
	target *html.Node
	opts   ObserveOptions

	mu      sync.Mutex
	pending []Mutation
	notify  chan struct{}
	closed  bool
}

// Observe attaches an observer to target (nil means the whole document).
func (d *Document) Observe(target *Node, opts ObserveOptions) *Observer {
	d.mu.Lock()
	defer d.mu.Unlock()
	th := d.root
	if target != nil {
		th = target.h
	}
	o := &Observer{
		doc:    d,
		target: th,
		opts:   opts,
		notify: make(chan struct{}, 1),
	}
	d.observers = append(d.observers, o)
	return o
}

// C signals that at least one record is pending.
func (o *Observer) C() <-chan struct{} { return o.notify }

// Take drains and returns pending records.
func (o *Observer) Take() []Mutation {
	o.mu.Lock()
	recs := o.pending
	o.pending = nil
	o.mu.Unlock()
	return recs
}

// Disconnect detaches the observer; further mutations are not delivered.
func (o *Observer) Disconnect() {
	o.doc.mu.Lock()
	for i, obs := range o.doc.observers {
		if obs == o {
			o.doc.observers = append(o.doc.observers[:i], o.doc.observers[i+1:]...)
			break
		}
	}
	o.doc.mu.Unlock()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// emit delivers a record to interested observers. Called with doc.mu held.
func (d *Document) emit(m Mutation) {
	for _, o := range d.observers {
		if !o.wants(m) {
			continue
		}
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			continue
		}
		o.pending = append(o.pending, m)
		o.mu.Unlock()
		select {
		case o.notify <- struct{}{}:
		default:
		}
	}
}

func (o *Observer) wants(m Mutation) bool {
	switch m.Type {
	case ChildListMutation:
		if !o.opts.ChildList {
			return false
		}
	case AttributeMutation:
		if !o.opts.Attributes {
			return false
		}
		if len(o.opts.AttributeFilter) > 0 {
			ok := false
			for _, a := range o.opts.AttributeFilter {
				if a == m.Attr {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
	}
	// Scope check: target must be the observed node or, with Subtree, be
	// contained in it.
	if m.Target == nil {
		return false
	}
	if m.Target.h == o.target {
		return true
	}
	if !o.opts.Subtree {
		return false
	}
	for h := m.Target.h; h != nil; h = h.Parent {
		if h == o.target {
			return true
		}
	}
	return false
}
