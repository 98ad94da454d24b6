package task

// Priorities by kind. Larger values are dequeued first.
const (
	priorityBulk            = 0
	priorityDerived         = 10
	priorityBookkeepingDone = 20
	prioritySentinel        = 30
	priorityCancel          = 40
)

// Priority returns the dequeue priority of the kind.
//
// Every control kind outranks every work kind. Among controls the order is
// Cancel, Sentinel, BookkeepingDone.
func (k Kind) Priority() int {
	switch k {
	case KindCancel:
		return priorityCancel
	case KindSentinel:
		return prioritySentinel
	case KindBookkeepingDone:
		return priorityBookkeepingDone
	case KindBookkeepingCheck, KindCCF:
		return priorityDerived
	default:
		return priorityBulk
	}
}

// Priority returns the dequeue priority of the task.
func (t *Task) Priority() int {
	return t.Kind.Priority()
}

// Less reports whether a must be dequeued before b.
// Tasks of equal priority are unordered here; queues break ties by arrival.
func Less(a, b *Task) bool {
	return a.Priority() > b.Priority()
}
