package tabs

// opQueue serialises the asynchronous operations of one document so that a
// close never overtakes a save, and two saves never interleave their writes.
type opQueue struct {
	running bool
	ops     []queuedOp
}

type queuedOp struct {
	run  func(finish func(error))
	done func(error)
}

func (m *Manager) enqueue(id string, run func(finish func(error)), done func(error)) {
	done = orNop(done)
	if _, ok := m.docs[id]; !ok {
		done(ErrNotOpen)
		return
	}
	q, ok := m.queues[id]
	if !ok {
		q = &opQueue{}
		m.queues[id] = q
	}
	q.ops = append(q.ops, queuedOp{run: run, done: done})
	if !q.running {
		m.next(id)
	}
}

// next starts the head of the queue. Operations left behind by a removed
// document complete with ErrNotOpen without running.
func (m *Manager) next(id string) {
	q := m.queues[id]
	for len(q.ops) > 0 {
		op := q.ops[0]
		q.ops = q.ops[1:]

		if _, ok := m.docs[id]; !ok {
			op.done(ErrNotOpen)
			continue
		}

		q.running = true
		finished := false
		op.run(func(err error) {
			if finished {
				return
			}
			finished = true
			op.done(err)
			m.loop.Post(func() { m.next(id) })
		})
		return
	}
	q.running = false
	delete(m.queues, id)
}
