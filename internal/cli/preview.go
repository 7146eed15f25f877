package cli

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/scoreframes/pkg/pipeline"
	"github.com/matzehuels/scoreframes/pkg/raster"
)

var (
	previewFrameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim)
	previewInkStyle   = lipgloss.NewStyle().Foreground(colorWhite)
)

// previewCommand creates the preview command, a terminal browser for the
// frames of a finished run.
func (c *CLI) previewCommand() *cobra.Command {
	var start int

	cmd := &cobra.Command{
		Use:   "preview [output]",
		Short: "Browse the frames of a run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pipeline.ReadManifest(args[0])
			if err != nil {
				return err
			}
			if len(m.Frames) == 0 {
				printWarning("Run %s has no frames", args[0])
				return nil
			}
			model := newPreviewModel(args[0], m).seek(start)
			_, err = tea.NewProgram(model, tea.WithContext(cmd.Context()), tea.WithAltScreen()).Run()
			return err
		},
	}

	cmd.Flags().IntVar(&start, "frame", 0, "frame index to open")
	return cmd
}

// =============================================================================
// previewModel - Frame browser
// =============================================================================

// previewModel is the bubbletea model for browsing frames.
type previewModel struct {
	dir      string
	manifest *pipeline.Manifest
	index    int
	frame    *image.Gray
	err      error
	width    int // terminal columns
}

func newPreviewModel(dir string, m *pipeline.Manifest) previewModel {
	return previewModel{dir: dir, manifest: m, width: 80}.seek(0)
}

// seek loads frame i, clamped to the run.
func (m previewModel) seek(i int) previewModel {
	i = max(0, min(i, len(m.manifest.Frames)-1))
	m.index = i
	m.frame, m.err = raster.ReadBMP(filepath.Join(m.dir, filepath.FromSlash(m.manifest.Frames[i].Path)))
	return m
}

func (m previewModel) Init() tea.Cmd {
	return nil
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h", "k", "up":
			return m.seek(m.index - 1), nil
		case "right", "l", "j", "down", " ":
			return m.seek(m.index + 1), nil
		case "home", "g":
			return m.seek(0), nil
		case "end", "G":
			return m.seek(len(m.manifest.Frames) - 1), nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m previewModel) View() string {
	var b strings.Builder
	f := m.manifest.Frames[m.index]

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Frame %d/%d", m.index, len(m.manifest.Frames)-1)))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(fmt.Sprintf("measures %s · %d bytes", f.Range, f.Bytes)))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(StyleWarning.Render(m.err.Error()))
	} else {
		ink := raster.Polarity(m.manifest.Polarity).Background() ^ 0xff
		scale := (m.frame.Rect.Dx() + m.width - 3) / max(m.width-2, 1)
		b.WriteString(previewFrameStyle.Render(previewInkStyle.Render(halfBlocks(m.frame, ink, max(scale, 1)))))
	}

	b.WriteString("\n")
	b.WriteString(StyleDim.Render("←/→ navigate  g/G first/last  q quit"))
	return b.String()
}

// halfBlocks draws g with one character per scale×2·scale pixel block; a
// cell half is set when any pixel in it equals ink.
func halfBlocks(g *image.Gray, ink uint8, scale int) string {
	r := g.Rect
	set := func(x0, y0 int) bool {
		for y := y0; y < min(y0+scale, r.Max.Y); y++ {
			for x := x0; x < min(x0+scale, r.Max.X); x++ {
				if g.Pix[g.PixOffset(x, y)] == ink {
					return true
				}
			}
		}
		return false
	}

	var b strings.Builder
	for y := r.Min.Y; y < r.Max.Y; y += 2 * scale {
		if y > r.Min.Y {
			b.WriteByte('\n')
		}
		for x := r.Min.X; x < r.Max.X; x += scale {
			top, bottom := set(x, y), set(x, y+scale)
			switch {
			case top && bottom:
				b.WriteString("█")
			case top:
				b.WriteString("▀")
			case bottom:
				b.WriteString("▄")
			default:
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}
