package connection

import "sort"

// Subscription is a topic handler registered on one connection handle.
type Subscription struct {
	ID    string
	Topic string

	handler Handler
	handle  *Handle
}

// Unsubscribe removes the handler. When the owning handle is still the
// live connection an UNSUBSCRIBE frame is sent. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.handle == nil {
		return
	}
	s.handle.manager.unsubscribe(s)
}

// registry maps subscription ids and topics to subscriptions. It is
// guarded by the Manager's mutex.
type registry struct {
	byID    map[string]*Subscription
	byTopic map[string]map[string]*Subscription
}

func newRegistry() *registry {
	return &registry{
		byID:    make(map[string]*Subscription),
		byTopic: make(map[string]map[string]*Subscription),
	}
}

func (r *registry) add(sub *Subscription) {
	r.byID[sub.ID] = sub
	subs, ok := r.byTopic[sub.Topic]
	if !ok {
		subs = make(map[string]*Subscription)
		r.byTopic[sub.Topic] = subs
	}
	subs[sub.ID] = sub
}

// remove reports whether id was registered.
func (r *registry) remove(id string) bool {
	sub, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	if subs := r.byTopic[sub.Topic]; subs != nil {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.byTopic, sub.Topic)
		}
	}
	return true
}

// lookup finds the subscriptions for an inbound message: the one named by
// the subscription header, or every subscription on the destination when
// the header is missing or unknown.
func (r *registry) lookup(subID, destination string) []*Subscription {
	if sub, ok := r.byID[subID]; ok {
		return []*Subscription{sub}
	}

	subs := r.byTopic[destination]
	out := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *registry) topics() []string {
	out := make([]string, 0, len(r.byTopic))
	for topic := range r.byTopic {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (r *registry) len() int {
	return len(r.byID)
}
