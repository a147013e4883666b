package render

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerFrames are the braille animation frames.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const (
	spinnerInterval = 80 * time.Millisecond
	clearLine       = "\r\033[K"
)

// Spinner shows one animated status line, with the seconds waited so far once
// the wait passes showElapsedAfter. A Spinner animates at most once.
type Spinner struct {
	writer  io.Writer
	message string

	frames           []string
	interval         time.Duration
	showElapsedAfter time.Duration
	now              func() time.Time

	once sync.Once
	stop context.CancelFunc
	done chan struct{}
}

func NewSpinner(writer io.Writer, message string) *Spinner {
	return &Spinner{
		writer:           writer,
		message:          message,
		frames:           SpinnerFrames,
		interval:         spinnerInterval,
		showElapsedAfter: 2 * time.Second,
		now:              time.Now,
		done:             make(chan struct{}),
	}
}

// Start animates until ctx ends or the returned function is called. The
// returned function blocks until the line has been cleared and may be called
// more than once.
func (s *Spinner) Start(ctx context.Context) func() {
	started := false
	s.once.Do(func() {
		ctx, s.stop = context.WithCancel(ctx)
		started = true
		go s.run(ctx)
	})
	if !started {
		return func() {}
	}

	return func() {
		s.stop()
		<-s.done
	}
}

func (s *Spinner) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	start := s.now()
	for frame := 0; ; frame++ {
		s.draw(frame, s.now().Sub(start))

		select {
		case <-ctx.Done():
			fmt.Fprint(s.writer, clearLine)
			return
		case <-ticker.C:
		}
	}
}

func (s *Spinner) draw(frame int, elapsed time.Duration) {
	line := PendingStyle.Render(s.frames[frame%len(s.frames)])
	if s.message != "" {
		line += " " + s.message
	}
	if elapsed >= s.showElapsedAfter {
		line += " " + DimStyle.Render(fmt.Sprintf("(%ds)", int(elapsed.Seconds())))
	}
	fmt.Fprint(s.writer, clearLine+line)
}
