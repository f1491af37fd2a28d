// Package sequencer serializes calls to the global directory.
//
// Add and remove tasks are queued in FIFO order and executed one at a time
// by a single worker goroutine. Each attempt runs under a deadline equal to
// the task's remaining TTL. A task without a waiting caller is retried for
// as long as its attempts time out; every other outcome completes the task
// and is handed to its Done hook.
//
//	seq := sequencer.New(client, cfg, sequencer.WithLogger(log))
//	seq.Start()
//	defer seq.Stop(ctx)
//
//	seq.Add(sequencer.NewAddTask(entry, gbids, true, ttl, now, func(err error) { ... }))
package sequencer
