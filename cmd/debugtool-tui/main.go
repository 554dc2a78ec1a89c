// Command debugtool-tui is a small interactive status viewer: it lists the
// known EDBG/WCH-Link tool identities, marks which are currently
// enumerable over USB, and shows a host resource panel alongside - grounded
// in guiperry-HASHER/internal/cli/ui/ui.go's Model/Update/View shape and
// its gopsutil-backed resource panel, at a scope proportional to this
// module (a status viewer, not a full chat/monitor UI).
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/gousb"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"debugtool/internal/tool"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	resourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Padding(0, 1)

	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	absentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// toolItem is one row of the status list: a tool identity plus whether it
// is currently enumerable over USB.
type toolItem struct {
	name      string
	connected bool
}

func (i toolItem) Title() string {
	if i.connected {
		return connectedStyle.Render("● " + i.name)
	}
	return absentStyle.Render("○ " + i.name)
}

func (i toolItem) Description() string {
	if i.connected {
		return "enumerable now"
	}
	return "not present"
}

func (i toolItem) FilterValue() string { return i.name }

// knownIdentity names one tool model and the USB identity to probe for.
type knownIdentity struct {
	name      string
	vendorID  gousb.ID
	productID gousb.ID
}

func knownIdentities() []knownIdentity {
	mk := func(name string, id tool.Identity) knownIdentity {
		return knownIdentity{name: name, vendorID: id.VendorID, productID: id.ProductID}
	}
	return []knownIdentity{
		mk("Atmel-ICE", tool.AtmelICE),
		mk("Power Debugger", tool.PowerDebugger),
		mk("JTAGICE3", tool.JTAGICE3),
		mk("MPLAB Snap", tool.MplabSnap),
		mk("MPLAB PICkit4", tool.MplabPICkit4),
		mk("Xplained Pro", tool.XplainedPro),
		mk("Xplained Mini", tool.XplainedMini),
		mk("Xplained Nano", tool.XplainedNano),
		mk("Curiosity Nano", tool.CuriosityNano),
		mk("WCH-LinkE", tool.WCHLinkE.Identity),
	}
}

type scanResultMsg struct{ items []list.Item }
type resourceMsg struct{ text string }

type model struct {
	list     list.Model
	resource string
	ctx      *gousb.Context
	width    int
	height   int
}

func newModel(ctx *gousb.Context) model {
	items := make([]list.Item, len(knownIdentities()))
	for i, id := range knownIdentities() {
		items[i] = toolItem{name: id.name}
	}
	l := list.New(items, list.NewDefaultDelegate(), 60, 20)
	l.Title = "Debug Tool Shell - Status"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	return model{list: l, ctx: ctx}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(scanTools(m.ctx), tickResources())
}

func scanTools(ctx *gousb.Context) tea.Cmd {
	return func() tea.Msg {
		items := make([]list.Item, 0, len(knownIdentities()))
		for _, id := range knownIdentities() {
			connected := false
			devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
				return desc.Vendor == id.vendorID && desc.Product == id.productID
			})
			if err == nil {
				connected = len(devices) > 0
				for _, d := range devices {
					d.Close()
				}
			}
			items = append(items, toolItem{name: id.name, connected: connected})
		}
		return scanResultMsg{items: items}
	}
}

func tickResources() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		cpuPercent, _ := psutil.Percent(0, false)
		memInfo, _ := psmem.VirtualMemory()
		cpu := 0.0
		if len(cpuPercent) > 0 {
			cpu = cpuPercent[0]
		}
		mem := 0.0
		if memInfo != nil {
			mem = memInfo.UsedPercent
		}
		text := fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%% | Go: %s", cpu, mem, runtime.Version())
		return resourceMsg{text: text}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, scanTools(m.ctx)
		}
	case scanResultMsg:
		m.list.SetItems(msg.items)
		return m, nil
	case resourceMsg:
		m.resource = msg.text
		return m, tickResources()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := titleStyle.Render("Debug Tool Driver - Status")
	footer := resourceStyle.Render(m.resource + "  (r: rescan, q: quit)")
	return header + "\n" + m.list.View() + "\n" + footer
}

func main() {
	ctx := gousb.NewContext()
	defer ctx.Close()

	p := tea.NewProgram(newModel(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "debugtool-tui: %v\n", err)
		os.Exit(1)
	}
}
