package processor

import (
	"context"

	"github.com/hyperjump/chatgraph/internal/archive"
	"github.com/hyperjump/chatgraph/internal/models"
)

const progressBuffer = 64

// Job is a processing run executing on its own goroutine.
type Job struct {
	progress chan models.Progress
	done     chan struct{}
	result   *Result
	err      error
}

// Start runs Process on a new goroutine. Progress events are delivered on
// Job.Progress, which is closed when the run ends. Events are dropped rather
// than blocking the run when the consumer falls behind, except the final done
// or failed event, which replaces the oldest queued event instead.
func (p *Processor) Start(ctx context.Context, convs []archive.Conversation, mode Mode) *Job {
	j := &Job{
		progress: make(chan models.Progress, progressBuffer),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		defer close(j.progress)
		j.result, j.err = p.run(ctx, convs, mode, j.emit)
	}()
	return j
}

func (j *Job) emit(pr models.Progress) {
	select {
	case j.progress <- pr:
		return
	default:
	}
	if pr.Phase != models.PhaseDone && pr.Phase != models.PhaseFailed {
		return
	}
	// The run is the only sender, so freeing one slot always succeeds.
	for {
		select {
		case <-j.progress:
		default:
		}
		select {
		case j.progress <- pr:
			return
		default:
		}
	}
}

// Progress returns the progress channel.
func (j *Job) Progress() <-chan models.Progress {
	return j.progress
}

// Done is closed when the run has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the run finishes and returns its outcome.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	return j.result, j.err
}
