package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/stm2mon/internal/ingest"
	"github.com/five82/stm2mon/internal/material"
)

const labelWidth = 18

// Field order on screen.
const (
	fieldTarget = iota
	fieldMaterial
	fieldDensity
	fieldZRatio
	fieldFile
	fieldRunID
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldTarget:   "Target thickness",
	fieldMaterial: "Material",
	fieldDensity:  "Density (g/cm³)",
	fieldZRatio:   "Z-ratio",
	fieldFile:     "Log file",
	fieldRunID:    "Run ID",
}

// form is the run description the operator edits before Start.
type form struct {
	inputs [fieldCount]textinput.Model
	focus  int
}

func newForm(in ingest.RunInput) form {
	var f form
	values := [fieldCount]string{
		fieldTarget:   in.TargetThickness,
		fieldMaterial: in.Material,
		fieldDensity:  in.Density,
		fieldZRatio:   in.ZRatio,
		fieldFile:     in.LogPath,
		fieldRunID:    in.RunID,
	}
	placeholders := [fieldCount]string{
		fieldTarget:   "e.g. 1200",
		fieldMaterial: strings.Join(material.Names(), " "),
		fieldDensity:  "from material",
		fieldZRatio:   "from material",
		fieldFile:     "/path/to/stm2.log",
		fieldRunID:    "from log file name",
	}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 512
		ti.Placeholder = placeholders[i]
		ti.SetValue(values[i])
		f.inputs[i] = ti
	}
	if strings.TrimSpace(in.Material) != "" && strings.TrimSpace(in.Density) == "" && strings.TrimSpace(in.ZRatio) == "" {
		f.fillMaterial()
	}
	f.inputs[f.focus].Focus()
	return f
}

// Input returns the current field values.
func (f form) Input() ingest.RunInput {
	return ingest.RunInput{
		LogPath:         strings.TrimSpace(f.inputs[fieldFile].Value()),
		RunID:           strings.TrimSpace(f.inputs[fieldRunID].Value()),
		Material:        strings.TrimSpace(f.inputs[fieldMaterial].Value()),
		Density:         strings.TrimSpace(f.inputs[fieldDensity].Value()),
		ZRatio:          strings.TrimSpace(f.inputs[fieldZRatio].Value()),
		TargetThickness: strings.TrimSpace(f.inputs[fieldTarget].Value()),
	}
}

func (f *form) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = (i + fieldCount) % fieldCount
	f.inputs[f.focus].Focus()
}

func (f *form) next() { f.setFocus(f.focus + 1) }
func (f *form) prev() { f.setFocus(f.focus - 1) }

// update forwards msg to the focused input. Typing a known material name
// replaces density and z-ratio with the table values.
func (f *form) update(msg tea.Msg) tea.Cmd {
	before := f.inputs[f.focus].Value()
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	if f.focus == fieldMaterial && f.inputs[fieldMaterial].Value() != before {
		f.fillMaterial()
	}
	return cmd
}

func (f *form) fillMaterial() {
	props, ok := material.Lookup(f.inputs[fieldMaterial].Value())
	if !ok {
		return
	}
	f.inputs[fieldDensity].SetValue(formatNumber(props.Density))
	f.inputs[fieldZRatio].SetValue(formatNumber(props.ZRatio))
}

func (f form) view(styles Styles, width int) string {
	inputWidth := width - labelWidth - 6
	if inputWidth < 10 {
		inputWidth = 10
	}
	var b strings.Builder
	for i := range f.inputs {
		ti := f.inputs[i]
		ti.Width = inputWidth
		label := styles.Label.Render(fieldLabels[i])
		if i == f.focus {
			label = styles.AccentText.Width(labelWidth).Render(fieldLabels[i])
		}
		b.WriteString(label)
		b.WriteString(ti.View())
		if i < len(f.inputs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
