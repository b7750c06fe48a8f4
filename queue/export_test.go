package queue

// HeadCap returns the capacity of the in-memory head buffer.
func (q *Disk) HeadCap() int {
	return cap(q.head)
}
