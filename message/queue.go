package message

import "rpcclient/rpcerr"

// Queue is an insertion ordered set of requests keyed by unique id.
// Encoding order is insertion order. A Queue is not safe for concurrent use.
type Queue struct {
	requests []*Request
	index    map[string]int // uid -> position in requests
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]int)}
}

// Add appends r. Adding the same request twice is an error.
func (q *Queue) Add(r *Request) error {
	if r == nil {
		return rpcerr.New("message.Queue.Add", rpcerr.InvalidArgument, "nil request")
	}
	if _, ok := q.index[r.uid]; ok {
		return rpcerr.Errorf("message.Queue.Add", rpcerr.InvalidArgument, "request %s already queued", r.uid)
	}
	q.index[r.uid] = len(q.requests)
	q.requests = append(q.requests, r)
	return nil
}

// Get looks a request up by unique id.
func (q *Queue) Get(uid string) (*Request, bool) {
	i, ok := q.index[uid]
	if !ok {
		return nil, false
	}
	return q.requests[i], true
}

// Delete removes the request with the given unique id and reports whether it was queued.
func (q *Queue) Delete(uid string) bool {
	i, ok := q.index[uid]
	if !ok {
		return false
	}
	q.requests = append(q.requests[:i], q.requests[i+1:]...)
	delete(q.index, uid)
	for j := i; j < len(q.requests); j++ {
		q.index[q.requests[j].uid] = j
	}
	return true
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.requests = nil
	q.index = make(map[string]int)
}

// Len returns the number of queued requests.
func (q *Queue) Len() int { return len(q.requests) }

// Requests returns the queued requests in insertion order.
func (q *Queue) Requests() []*Request {
	out := make([]*Request, len(q.requests))
	copy(out, q.requests)
	return out
}
