// Package render formats entity listings and sync results for terminal
// output.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/goliatone/go-spladmin/core"
)

const maxCellWidth = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// overviewColumns picks the content fields worth a column in the per-kind
// listing. Name is always first.
var overviewColumns = map[core.Kind][]string{
	core.KindRole:        {"imported_roles", "srchIndexesAllowed", "srchDiskQuota"},
	core.KindUser:        {"realname", "email", "roles", "defaultApp"},
	core.KindApp:         {"version", "label", "visible", "disabled"},
	core.KindIndex:       {"maxTotalDataSizeMB", "frozenTimePeriodInSecs", "homePath"},
	core.KindEventType:   {"search", "tags", "disabled"},
	core.KindSavedSearch: {"search", "cron_schedule", "disabled"},
	core.KindInput:       {"index", "sourcetype", "disabled"},
}

// Listing renders the entities of one kind as a table.
func Listing(kind core.Kind, entities []core.Entity) string {
	columns := overviewColumns[kind]
	header := append([]string{"name"}, columns...)

	rows := make([][]string, 0, len(entities))
	sorted := append([]core.Entity(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, entity := range sorted {
		row := make([]string, 0, len(header))
		row = append(row, entity.Name)
		for _, column := range columns {
			row = append(row, Prettify(entity.Content[column]))
		}
		rows = append(rows, row)
	}

	rendered := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers(header...).
		Rows(rows...).
		String()

	title := fmt.Sprintf("%s (%d)", kind, len(entities))
	return titleStyle.Render(title) + "\n" + rendered + "\n"
}

// Detail renders one entity's full content, one field per row.
func Detail(entity core.Entity) string {
	fields := make([]string, 0, len(entity.Content))
	for field := range entity.Content {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	rows := make([][]string, 0, len(fields))
	for _, field := range fields {
		rows = append(rows, []string{field, Prettify(entity.Content[field])})
	}

	rendered := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("field", "value").
		Rows(rows...).
		String()

	title := fmt.Sprintf("%s %q", entity.Kind, entity.Name)
	return titleStyle.Render(title) + "\n" + rendered + "\n"
}

// Prettify flattens a content value to a single table cell: sequences are
// comma-joined, unset values show as "-", long values truncate.
func Prettify(value any) string {
	var text string
	switch {
	case core.IsUnset(value):
		text = "-"
	default:
		switch typed := value.(type) {
		case []string:
			text = strings.Join(typed, ", ")
		case []any:
			text = strings.Join(core.StringSlice(typed), ", ")
		case bool:
			if typed {
				text = "yes"
			} else {
				text = "no"
			}
		case float64:
			// JSON numbers decode as float64; render integers without the
			// trailing fraction
			if typed == float64(int64(typed)) {
				text = fmt.Sprintf("%d", int64(typed))
			} else {
				text = fmt.Sprint(typed)
			}
		default:
			text = fmt.Sprint(typed)
		}
	}
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > maxCellWidth {
		text = text[:maxCellWidth-1] + "…"
	}
	return text
}
