package daemon

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/protocol"
	"github.com/joss/mcpd/internal/tool"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	budgetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func (d Daemon) toolsCmd(f *flags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools this daemon serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return d.PrintTools(cmd.OutOrStdout(), cfg, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tools/list payload")
	return cmd
}

// PrintTools writes the tool table, or the exact tools/list result when
// asJSON is set.
func (d Daemon) PrintTools(w io.Writer, cfg *config.Config, asJSON bool) error {
	reg := tool.NewRegistry()
	if err := reg.RegisterAll(d.Specs()...); err != nil {
		return err
	}

	if asJSON {
		tools, err := protocol.ListTools(reg)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.ListToolsResult{Tools: tools})
	}

	specs := reg.List()
	rows := make([][]string, 0, len(specs))
	for _, s := range specs {
		rows = append(rows, []string{
			s.Name,
			s.Budget(cfg.DefaultTimeout, cfg.SlowTimeout).String(),
			s.Description,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("TOOL", "BUDGET", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return budgetStyle
			default:
				return cellStyle
			}
		})

	fmt.Fprintf(w, "%s %s\n", color.CyanString(d.Name), color.HiBlackString("v%s, %d tools", d.Version, len(specs)))
	fmt.Fprintln(w, t.Render())
	return nil
}
