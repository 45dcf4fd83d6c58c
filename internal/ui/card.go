package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pairline/pairline/internal/protocol"
)

// PeerCardView renders the matched peer's profile in a box.
func PeerCardView(peer protocol.PeerInfo) string {
	content := fmt.Sprintf("%s Matched!\n\n%s Name:    %s\n   Age:     %s\n   Gender:  %s",
		IconSuccess,
		IconPeer, PeerNameStyle.Render(peer.FullName),
		MutedStyle.Render(peer.Age),
		MutedStyle.Render(peer.Gender),
	)
	return PeerBoxStyle.Render(content)
}

// ProfileTableView renders a saved profile as a two-column table.
func ProfileTableView(p protocol.Profile) string {
	headers := []string{"Field", "Value"}
	rows := [][]string{
		{"Name", p.FullName},
		{"Age", p.Age},
		{"Gender", p.Gender},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderProfileTable outputs the profile table directly to stdout.
func RenderProfileTable(p protocol.Profile) {
	fmt.Println(ProfileTableView(p))
}
