package core

// connSet groups every attached connection, joined or not.
type connSet struct {
	clients map[string]*Client
}

func newConnSet() *connSet {
	return &connSet{clients: make(map[string]*Client)}
}

// add inserts a client. Returns true if newly added.
func (s *connSet) add(c *Client) bool {
	if _, exists := s.clients[c.ID]; exists {
		return false
	}
	s.clients[c.ID] = c
	return true
}

// remove deletes a client. Returns true if removed.
func (s *connSet) remove(id string) bool {
	if _, exists := s.clients[id]; !exists {
		return false
	}
	delete(s.clients, id)
	return true
}

func (s *connSet) get(id string) (*Client, bool) {
	c, ok := s.clients[id]
	return c, ok
}

// broadcast sends an event to all clients. A client that cannot keep up is
// cut off rather than skipped.
func (s *connSet) broadcast(ev *Event) (sent, dropped int) {
	for _, client := range s.clients {
		if !client.deliver(ev) {
			dropped++
			continue
		}
		sent++
	}
	return sent, dropped
}

func (s *connSet) len() int {
	return len(s.clients)
}
