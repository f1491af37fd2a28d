package sequencer

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/capdir/discovery"
)

// Mode is the kind of remote directory operation a Task performs.
type Mode int

const (
	ModeAdd Mode = iota
	ModeRemove
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeRemove:
		return "remove"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Task is one unit of work for the global directory. It is not modified
// after creation.
type Task struct {
	Mode Mode
	// Entry is the registration of an add task.
	Entry discovery.GlobalDiscoveryEntry
	// ParticipantID is the participant of a remove task.
	ParticipantID string
	Gbids         []string
	// Await marks a task whose caller waits for the outcome. Tasks without a
	// waiting caller are retried when the remote call times out.
	Await     bool
	TTL       time.Duration
	CreatedAt time.Time
	// Done receives the terminal outcome. It is called exactly once.
	Done func(error)
}

// NewAddTask creates a task that registers entry in gbids.
func NewAddTask(entry discovery.GlobalDiscoveryEntry, gbids []string, await bool, ttl time.Duration, now time.Time, done func(error)) *Task {
	return &Task{
		Mode:          ModeAdd,
		Entry:         entry.Clone(),
		ParticipantID: entry.ParticipantID,
		Gbids:         slices.Clone(gbids),
		Await:         await,
		TTL:           ttl,
		CreatedAt:     now,
		Done:          done,
	}
}

// NewRemoveTask creates a task that unregisters participantID from gbids.
// Remove tasks never have a waiting caller.
func NewRemoveTask(participantID string, gbids []string, ttl time.Duration, now time.Time, done func(error)) *Task {
	return &Task{
		Mode:          ModeRemove,
		ParticipantID: participantID,
		Gbids:         slices.Clone(gbids),
		TTL:           ttl,
		CreatedAt:     now,
		Done:          done,
	}
}

// remainingTTL is the TTL left at now, never below floor.
func (t *Task) remainingTTL(now time.Time, floor time.Duration) time.Duration {
	left := t.TTL - now.Sub(t.CreatedAt)
	if left < floor {
		return floor
	}
	return left
}
