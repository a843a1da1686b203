// Package display renders live register values as a paginated grid in the
// terminal until the operator quits.
package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/rwirdemann/modsim"
)

// Reader is the read side of a register store.
type Reader interface {
	Get(class modsim.RegisterClass, address int) (uint16, error)
	Size() int
}

// SizeFunc returns the terminal width and height.
type SizeFunc func() (width, height int, err error)

func terminalSize() (int, int, error) {
	return term.GetSize(os.Stdout.Fd())
}

type options struct {
	refresh time.Duration
	page    time.Duration
	size    SizeFunc
	input   io.Reader
	output  io.Writer
}

type Option func(*options)

// WithRefresh sets the interval between redraws. Non-positive values keep
// the default.
func WithRefresh(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refresh = d
		}
	}
}

// WithPageInterval sets how long a page stays on screen before the next one
// is shown. Non-positive values keep the default.
func WithPageInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.page = d
		}
	}
}

func WithSizeFunc(f SizeFunc) Option {
	return func(o *options) { o.size = f }
}

func WithInput(r io.Reader) Option {
	return func(o *options) { o.input = r }
}

func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

type keyMap struct {
	Next key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Next: key.NewBinding(key.WithKeys("n", "right", " "), key.WithHelp("n", "next page")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	reader      Reader
	addresses   []int
	width       int
	height      int
	page        int
	pageStarted time.Time
	opts        options
	help        help.Model
	quitting    bool
	err         error
}

func newModel(r Reader, addresses []int, width, height int, o options) model {
	return model{
		reader:      r,
		addresses:   addresses,
		width:       width,
		height:      height,
		pageStarted: time.Now(),
		opts:        o,
		help:        help.New(),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd(m.opts.refresh)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.page >= pageCount(len(m.addresses), m.height) {
			m.page = 0
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.pageStarted = time.Now()
			return m.advance()
		}

	case tickMsg:
		if time.Time(msg).Sub(m.pageStarted) >= m.opts.page {
			var cmd tea.Cmd
			m.pageStarted = time.Time(msg)
			if m, cmd = m.advance(); cmd != nil {
				return m, cmd
			}
		}
		return m, tickCmd(m.opts.refresh)
	}
	return m, nil
}

// advance moves to the next page. After the last page the terminal size is
// queried again so a resize takes effect at the latest after one full cycle.
func (m model) advance() (model, tea.Cmd) {
	m.page++
	if m.page < pageCount(len(m.addresses), m.height) {
		return m, nil
	}
	m.page = 0
	w, h, err := m.opts.size()
	if err != nil {
		m.err = fmt.Errorf("%w: %v", modsim.ErrTerminalUnavailable, err)
		m.quitting = true
		return m, tea.Quit
	}
	m.width, m.height = w, h
	m.help.Width = w
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	lines := renderPage(m.reader, m.addresses, m.height, m.page)
	status := fmt.Sprintf(" page %d/%d • ", m.page+1, pageCount(len(m.addresses), m.height))
	return strings.Join(lines, "\n") + "\n" + status + m.help.View(keys)
}

// Run shows the registers in addresses (all by default) until the operator
// quits or ctx is cancelled. It only reads from r. An invalid selection fails
// with ErrInvalidSelection and an unknown terminal size with
// ErrTerminalUnavailable; nothing is rendered in either case.
func Run(ctx context.Context, r Reader, addresses []int, opts ...Option) error {
	selection, err := Selection(r.Size(), addresses)
	if err != nil {
		return err
	}

	o := options{
		refresh: 50 * time.Millisecond,
		page:    2 * time.Second,
		size:    terminalSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	w, h, err := o.size()
	if err != nil {
		return fmt.Errorf("%w: %v", modsim.ErrTerminalUnavailable, err)
	}

	programOpts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	}
	if o.input != nil {
		programOpts = append(programOpts, tea.WithInput(o.input))
	}
	if o.output != nil {
		programOpts = append(programOpts, tea.WithOutput(o.output))
	}

	final, err := tea.NewProgram(newModel(r, selection, w, h, o), programOpts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
