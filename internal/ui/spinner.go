package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// StatusLine animates a single terminal line while the CLI waits on the
// relay, then replaces it with a final result line.
type StatusLine struct {
	out    io.Writer
	frames []string
	fps    time.Duration

	mu     sync.Mutex
	label  string
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// DialStatus is shown while connecting to the relay.
func DialStatus(label string) *StatusLine {
	return newStatusLine(os.Stdout, spinner.Globe, label)
}

// WaitStatus is shown while waiting for the relay to answer.
func WaitStatus(label string) *StatusLine {
	return newStatusLine(os.Stdout, spinner.Points, label)
}

func newStatusLine(out io.Writer, s spinner.Spinner, label string) *StatusLine {
	return &StatusLine{
		out:    out,
		frames: s.Frames,
		fps:    s.FPS,
		label:  label,
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Start begins animating and returns l for chaining.
func (l *StatusLine) Start() *StatusLine {
	go l.run()
	return l
}

func (l *StatusLine) run() {
	defer close(l.exited)
	ticker := time.NewTicker(l.fps)
	defer ticker.Stop()

	for i := 0; ; i++ {
		l.mu.Lock()
		fmt.Fprintf(l.out, "\r\033[K%s %s", SpinnerStyle.Render(l.frames[i%len(l.frames)]), l.label)
		l.mu.Unlock()

		select {
		case <-l.quit:
			return
		case <-ticker.C:
		}
	}
}

// SetLabel changes the text next to the animation.
func (l *StatusLine) SetLabel(label string) {
	l.mu.Lock()
	l.label = label
	l.mu.Unlock()
}

// Stop clears the line. It waits for the animation to finish, so nothing
// is written after it returns. Stopping twice is a no-op.
func (l *StatusLine) Stop() {
	l.once.Do(func() {
		close(l.quit)
		<-l.exited
		fmt.Fprint(l.out, "\r\033[K")
	})
}

// Succeed stops the animation and leaves msg behind.
func (l *StatusLine) Succeed(msg string) {
	l.Stop()
	fmt.Fprintf(l.out, "%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

// Fail stops the animation and leaves msg behind in the error style.
func (l *StatusLine) Fail(msg string) {
	l.Stop()
	fmt.Fprintf(l.out, "%s %s\n", ErrorStyle.Render(IconError), msg)
}
