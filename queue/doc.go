// Package queue implements the asynchronous import queue.
//
// A Queue owns one worker goroutine that drains a FIFO of pending jobs. For
// each job the worker calls Begin (the Queued to Loading transition) outside
// the queue lock and then Run. When the FIFO is empty the worker sleeps for
// the idle interval or until new work arrives.
//
// Pending jobs can be withdrawn individually (Remove) or all at once
// (AbortAll); withdrawn jobs are told via Cancel. A job that is already
// running cannot be interrupted: Close returns only after it finished.
//
//	q := queue.New(queue.WithLogger(logger))
//	defer q.Close()
//
//	if err := q.Enqueue(job); err != nil { ... }
package queue
