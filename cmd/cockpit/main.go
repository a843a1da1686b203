// Cockpit provides a TUI to watch and edit the registers of a running modbus device.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rwirdemann/modsim"
	"github.com/rwirdemann/modsim/modbus"
)

const (
	focusRegisterList = iota
	focusRegisterInput
	ratioLeftPanelWidth = 0.6
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder())

var activeStyle = baseStyle.
	BorderForeground(lipgloss.Color("white"))

var passiveStyle = baseStyle.
	BorderForeground(lipgloss.Color("240"))

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
	Light: "#909090",
	Dark:  "#626262",
}).Padding(0, 1)

type modbusPort interface {
	ReadRegister(register []modsim.Register) []modsim.Register
	WriteRegister(class modsim.RegisterClass, addr, value uint16) error
	Close()
}

type model struct {
	port            modbusPort
	interval        time.Duration
	focus           int
	registerTable   table.Model
	watched         []modsim.Register
	register        []modsim.Register
	currentRegister modsim.Register
	registerInput   textinput.Model
	status          string
	fullHeight      int
	fullWidth       int
	leftPanelWidth  int
	rightPanelWidth int
}

func newModel(port modbusPort, watched []modsim.Register, interval time.Duration) model {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)

	columns := []table.Column{
		{Title: "Unit", Width: 5},
		{Title: "Address", Width: 8},
		{Title: "Type", Width: 10},
		{Title: "Value", Width: 8},
	}

	registers := port.ReadRegister(watched)
	registerTable := table.New(
		table.WithColumns(columns),
		table.WithRows(registersToTableRows(registers)),
		table.WithFocused(true),
	)
	registerTable.SetStyles(s)

	return model{
		port:          port,
		interval:      interval,
		registerTable: registerTable,
		registerInput: textinput.New(),
		focus:         focusRegisterList,
		watched:       watched,
		register:      registers,
	}
}

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd { return tickCmd(m.interval) }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmds []tea.Cmd
		cmd  tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.fullHeight = msg.Height
		m.fullWidth = msg.Width
		m.leftPanelWidth = int(float32(m.fullWidth) * ratioLeftPanelWidth)
		m.rightPanelWidth = m.fullWidth - m.leftPanelWidth - 4
		m.registerTable.SetHeight(m.fullHeight - 4)
		return m, nil

	case tea.KeyMsg:
		switch m.focus {
		case focusRegisterList:
			m.registerTable, cmd = m.registerTable.Update(msg)
			cmds = append(cmds, cmd)

			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "enter":
				if len(m.register) == 0 {
					break
				}
				m.currentRegister = m.register[m.registerTable.Cursor()]
				m.registerInput.SetValue(strconv.Itoa(int(m.currentRegister.Value)))
				m.registerInput.SetCursor(len(m.registerInput.Value()))
				m.registerInput.Focus()
				m.registerTable.Blur()
				m.focus = focusRegisterInput
			}

		case focusRegisterInput:
			m.registerInput, cmd = m.registerInput.Update(msg)
			cmds = append(cmds, cmd)

			switch msg.String() {
			case "esc":
				m.leaveInput()
			case "enter":
				m.status = m.write()
				m.leaveInput()
			}
		}

	case tickMsg:
		m.register = m.port.ReadRegister(m.watched)
		m.registerTable.SetRows(registersToTableRows(m.register))
		cmds = append(cmds, tickCmd(m.interval))
	}

	return m, tea.Batch(cmds...)
}

func (m *model) leaveInput() {
	m.registerInput.Blur()
	m.registerTable.Focus()
	m.focus = focusRegisterList
}

func (m model) write() string {
	v, err := strconv.ParseUint(strings.TrimSpace(m.registerInput.Value()), 10, 16)
	if err != nil {
		return fmt.Sprintf("invalid value: %v", err)
	}
	r := m.currentRegister
	if err := m.port.WriteRegister(r.Class, r.Address, uint16(v)); err != nil {
		slog.Error(err.Error())
		return err.Error()
	}
	return fmt.Sprintf("%s 0x%X = %d", r.Class, r.Address, v)
}

func (m model) View() string {
	registerTable := m.renderRegisterTable()
	registerForm := m.renderRegisterForm()
	return lipgloss.JoinHorizontal(lipgloss.Top, registerTable, registerForm)
}

func (m model) renderRegisterTable() string {
	var style lipgloss.Style
	if m.focus == focusRegisterList {
		style = activeStyle
	} else {
		style = passiveStyle
	}
	style = style.Height(m.fullHeight - 4).Width(m.leftPanelWidth)
	return style.Render(m.registerTable.View()) + "\n  " + m.registerTable.HelpView() + helpStyle.Render(" • <enter> update register value") + "\n"
}

func (m model) renderRegisterForm() string {
	var style lipgloss.Style
	if m.focus == focusRegisterInput {
		style = activeStyle
	} else {
		style = passiveStyle
	}

	s := ""
	if m.focus == focusRegisterInput {
		s = fmt.Sprintf("\nAddress: 0x%X\n", m.currentRegister.Address)
		s = fmt.Sprintf("%sType   : %s\n\n", s, m.currentRegister.Class)
		m.registerInput.Prompt = "Value  : "
		s += m.registerInput.View()
	} else if m.status != "" {
		s = "\n" + m.status
	}

	style = style.Border(generateBorder("Edit Register", m.rightPanelWidth))
	return lipgloss.JoinVertical(
		lipgloss.Top,
		style.Padding(0, 1).Height(m.fullHeight-5).Width(m.rightPanelWidth).Render(s),
		helpStyle.Render("enter - save • esc - discard"))
}

func generateBorder(title string, width int) lipgloss.Border {
	if width < 0 {
		return lipgloss.RoundedBorder()
	}
	border := lipgloss.RoundedBorder()
	border.Top = border.Top + border.MiddleRight + " " + title + " " + border.MiddleLeft + strings.Repeat(border.Top, width)
	return border
}

func registersToTableRows(registers []modsim.Register) []table.Row {
	var rows []table.Row
	for _, r := range registers {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", r.UnitID),
			fmt.Sprintf("0x%X", r.Address),
			r.Class.String(),
			fmt.Sprintf("%d", r.Value),
		})
	}
	return rows
}

func main() {
	url := flag.String("url", "tcp://localhost:502", "device url")
	unit := flag.Uint("unit", 1, "unit id")
	class := flag.String("class", "holding", "register class: coil | discrete | input | holding")
	from := flag.Uint("from", 0, "first register address")
	count := flag.Uint("count", 20, "number of registers")
	interval := flag.Duration("interval", time.Second, "refresh interval")
	help := flag.Bool("help", false, "print usage")
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	c, err := modsim.ParseRegisterClass(*class)
	if err != nil {
		log.Fatal(err)
	}
	var watched []modsim.Register
	for a := *from; a < *from+*count && a <= 0xFFFF; a++ {
		watched = append(watched, modsim.Register{UnitID: uint8(*unit), Class: c, Address: uint16(a)})
	}

	port, err := modbus.NewAdapter(*url, time.Second, uint8(*unit))
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()

	// the TUI owns the terminal
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if _, err := tea.NewProgram(newModel(port, watched, *interval), tea.WithAltScreen()).Run(); err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}
