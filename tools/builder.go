package tools

import (
	"slices"

	"github.com/ollama/ollama/api"
)

// Builder assembles a Tool schema. Tools are enumerated statically at wiring
// time so the catalog and the executor set cannot drift apart.
type Builder struct {
	tool Tool
}

func NewTool(name, description string) *Builder {
	b := &Builder{
		tool: Tool{
			Tool: api.Tool{
				Type: "function",
				Function: api.ToolFunction{
					Name:        name,
					Description: description,
				},
			},
		},
	}

	b.tool.Function.Parameters.Type = "object"
	b.tool.Function.Parameters.Properties = make(map[string]api.ToolProperty, 8)
	return b
}

func (b *Builder) StringParam(name, desc string, required bool) *Builder {
	b.setProp(name, api.ToolProperty{
		Type:        api.PropertyType{"string"},
		Description: desc,
	}, required)
	return b
}

func (b *Builder) IntParam(name, desc string, required bool) *Builder {
	b.setProp(name, api.ToolProperty{
		Type:        api.PropertyType{"integer"},
		Description: desc,
	}, required)
	return b
}

func (b *Builder) StringSliceParam(name, desc string, required bool) *Builder {
	b.setProp(name, api.ToolProperty{
		Type:        api.PropertyType{"array"},
		Items:       map[string]any{"type": "string"},
		Description: desc,
	}, required)
	return b
}

func (b *Builder) EnumParam(name, desc string, values []string, required bool) *Builder {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	b.setProp(name, api.ToolProperty{
		Type:        api.PropertyType{"string"},
		Enum:        enum,
		Description: desc,
	}, required)
	return b
}

// TimeParams adds the shared time-filter parameters every time-aware tool
// accepts.
func (b *Builder) TimeParams() *Builder {
	b.StringParam("start_time", "Range start, 'YYYY-MM-DD' or 'YYYY-MM-DD HH:MM:SS', local time. Overrides year/month/day/hour.", false)
	b.StringParam("end_time", "Range end, same format as start_time.", false)
	b.IntParam("year", "Calendar year, e.g. 2024. Rounded to the full year unless month/day/hour narrow it.", false)
	b.IntParam("month", "Month 1-12, combined with year.", false)
	b.IntParam("day", "Day of month, combined with year and month.", false)
	b.IntParam("hour", "Hour 0-23, combined with year, month and day.", false)
	return b
}

func (b *Builder) Summarize(enabled bool) *Builder {
	b.tool.Summarize = enabled
	return b
}

func (b *Builder) WithHandler(fn Handler) *Builder {
	b.tool.Handler = fn
	return b
}

func (b *Builder) Build() Tool {
	return b.tool
}

func (b *Builder) setProp(name string, p api.ToolProperty, required bool) {
	b.tool.Function.Parameters.Properties[name] = p
	if required {
		req := b.tool.Function.Parameters.Required
		if !slices.Contains(req, name) {
			b.tool.Function.Parameters.Required = append(req, name)
		}
	}
}
