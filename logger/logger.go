// Package logger is the central, bounded log shared by every component.
//
// Entries are a tag and a detail string. A run of identical entries is
// collapsed into one entry with a repeat count, so a guest program hammering
// an unmapped address does not flood the log.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

// MaxEntries is the number of entries kept by the central log.
const MaxEntries = 256

// Entry is a single line in the log.
type Entry struct {
	Timestamp time.Time
	Tag       string
	Detail    string
	Repeated  int
}

func (e Entry) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("%s: %s", e.Tag, e.Detail))
	if e.Repeated > 0 {
		s.WriteString(fmt.Sprintf(" (repeat x%d)", e.Repeated+1))
	}
	return s.String()
}

var tagColor = ansi.ColorFunc("cyan+b")

type logger struct {
	mu         sync.Mutex
	maxEntries int
	entries    []Entry

	echo      io.Writer
	echoColor bool
}

func newLogger(maxEntries int) *logger {
	return &logger{
		maxEntries: maxEntries,
		entries:    make([]Entry, 0, maxEntries),
	}
}

func (l *logger) log(tag, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", "")

	if n := len(l.entries); n > 0 && l.entries[n-1].Tag == tag && l.entries[n-1].Detail == detail {
		l.entries[n-1].Repeated++
		l.entries[n-1].Timestamp = time.Now()
		return
	}

	e := Entry{Timestamp: time.Now(), Tag: tag, Detail: detail}
	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}

	if l.echo != nil {
		if l.echoColor {
			fmt.Fprintf(l.echo, "%s: %s\n", tagColor(e.Tag), e.Detail)
		} else {
			fmt.Fprintln(l.echo, e.String())
		}
	}
}

func (l *logger) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

func (l *logger) tail(output io.Writer, number int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if number > len(l.entries) || number < 0 {
		number = len(l.entries)
	}
	for _, e := range l.entries[len(l.entries)-number:] {
		io.WriteString(output, e.String()+"\n")
	}
}

func (l *logger) copy() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := make([]Entry, len(l.entries))
	copy(c, l.entries)
	return c
}

// only one central log for the whole emulator.
var central = newLogger(MaxEntries)

// enabled gates the formatting work in Logf. Components on the hot path check
// Enabled before building a detail string.
var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// SetEnabled turns logging on or off.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Enabled reports whether logging is on.
func Enabled() bool {
	return enabled.Load()
}

// Log adds an entry to the central log.
func Log(tag, detail string) {
	if enabled.Load() {
		central.log(tag, detail)
	}
}

// Logf adds a formatted entry to the central log.
func Logf(tag, format string, args ...interface{}) {
	if enabled.Load() {
		central.log(tag, fmt.Sprintf(format, args...))
	}
}

// Clear removes all entries.
func Clear() {
	central.clear()
}

// Write writes every entry to output.
func Write(output io.Writer) {
	central.tail(output, -1)
}

// Tail writes the last number entries to output.
func Tail(output io.Writer, number int) {
	central.tail(output, number)
}

// Entries returns a copy of the log.
func Entries() []Entry {
	return central.copy()
}

// SetEcho prints new entries to output as they are logged. A nil output stops
// echoing. Colour is used only when output is a terminal.
func SetEcho(output io.Writer) {
	central.mu.Lock()
	defer central.mu.Unlock()

	central.echo = output
	central.echoColor = false

	if f, ok := output.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		central.echo = colorable.NewColorable(f)
		central.echoColor = true
	}
}
