package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/state"
)

// renderMain renders the header, form, run panel and command bar.
func (m Model) renderMain() string {
	styles := m.theme.Styles()
	panelWidth := max(m.width-2, 40)

	formPanel := styles.Panel.Width(panelWidth - 2).Render(
		styles.AccentText.Bold(true).Render("Run") + "\n" + m.form.view(styles, panelWidth-4),
	)
	runPanel := styles.Panel.Width(panelWidth - 2).Render(m.renderRun(styles))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(styles),
		formPanel,
		runPanel,
		m.renderStatusLine(styles),
		m.renderCommandBar(styles),
	)
}

func (m Model) renderHeader(styles Styles) string {
	snap := m.snapshot
	left := styles.Logo.Render("STM-2 MONITOR")
	badge := styles.Badge(snap.Status.String()).Render(strings.ToUpper(snap.Status.String()))
	header := left + "  " + badge
	if snap.Run.RunID != "" {
		header += "  " + styles.MutedText.Render("run "+snap.Run.RunID)
	}
	return styles.Header.Width(max(m.width, 0)).Render(header)
}

func (m Model) renderRun(styles Styles) string {
	snap := m.snapshot
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(styles.Label.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	if snap.Status == state.StatusIdle {
		b.WriteString(styles.FaintText.Render("No run started"))
		m.renderPreview(&b, styles)
		return b.String()
	}

	row("Material", styles.Text.Render(fmt.Sprintf("%s  (density %s, z-ratio %s)",
		snap.Run.Material, formatNumber(snap.Run.Density), formatNumber(snap.Run.ZRatio))))
	row("Target", styles.Text.Render(fmt.Sprintf("%s  (alert at %s)",
		formatNumber(snap.Run.TargetThickness), formatNumber(snap.Run.AlertThreshold()))))

	if !snap.HasSample {
		row("Last sample", styles.FaintText.Render("waiting for data"))
	} else {
		s := snap.LastSample
		row("Last sample", styles.Text.Render(fmt.Sprintf("t=%s  rate=%s  thickness=%s  freq=%s",
			formatNumber(s.Time), formatNumber(s.Rate), formatNumber(s.Thickness), formatNumber(s.Frequency))))
		row("Samples", styles.Text.Render(fmt.Sprintf("%d", snap.Samples)))
	}

	row("Progress", m.bar.ViewAs(progressFraction(snap.Progress))+" "+
		styles.Text.Render(fmt.Sprintf("%.1f%%", snap.Progress)))
	row("Alert", alertBadge(styles, snap))

	sink := styles.SuccessText.Render("ok")
	switch {
	case snap.SinkDegraded():
		sink = styles.DangerText.Render(fmt.Sprintf("degraded (%d failed writes)", snap.ConsecutiveFailures))
	case snap.ConsecutiveFailures > 0:
		sink = styles.WarningText.Render("last write failed")
	}
	row("Store", sink)

	if snap.Status != state.StatusRunning {
		m.renderPreview(&b, styles)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderPreview(b *strings.Builder, styles Styles) {
	if m.previewPath == "" {
		return
	}
	b.WriteString("\n")
	b.WriteString(styles.Label.Render("Log tail"))
	switch {
	case m.previewErr != nil:
		b.WriteString(styles.DangerText.Render(m.previewErr.Error()))
	case m.preview == nil:
		b.WriteString(styles.WarningText.Render("file not found"))
	case len(m.preview) == 0:
		b.WriteString(styles.FaintText.Render("empty"))
	default:
		for i, line := range m.preview {
			if i > 0 {
				b.WriteString("\n")
				b.WriteString(styles.Label.Render(""))
			}
			b.WriteString(styles.FaintText.Render(line))
		}
	}
	b.WriteString("\n")
}

func alertBadge(styles Styles, snap state.Snapshot) string {
	if !snap.HasAlert {
		return styles.FaintText.Render("unknown")
	}
	if snap.AlertLevel == alert.Above {
		return styles.Badge("alert").Render("THRESHOLD REACHED")
	}
	return styles.Badge("below").Render("below threshold")
}

// progressFraction clamps a percentage to the [0, 1] range the bar draws.
func progressFraction(pct float64) float64 {
	f := pct / 100
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func (m Model) renderStatusLine(styles Styles) string {
	text := styles.Text.Render(m.status)
	if !m.statusOK {
		text = styles.DangerText.Render(m.status)
	}
	return styles.Footer.Width(max(m.width, 0)).Render(text)
}

func (m Model) renderCommandBar(styles Styles) string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, styles.WarningText.Render(h.Key)+" "+styles.MutedText.Render(h.Desc))
	}
	return styles.Footer.Width(max(m.width, 0)).Render(strings.Join(parts, "  "))
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	titles := []string{"Session", "Form", "General"}
	groups := m.keys.FullHelp()
	for i, group := range groups {
		b.WriteString(styles.AccentText.Bold(true).Render(titles[i]))
		b.WriteString("\n")
		for _, binding := range group {
			h := binding.Help()
			keyStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Warning)).
				Width(14)
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		if i < len(groups)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(40)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
