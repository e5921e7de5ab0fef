package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/swag"
	"github.com/paideia-ai/paideia/extract"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/provider"
)

// ScheduleInput describes the curriculum to plan. TargetUnits and Notes are
// optional; the target is a soft hint to the model, not a contract.
type ScheduleInput struct {
	Subject       string
	GradeLevel    string
	DurationWeeks int
	TargetUnits   *int
	Notes         *string
}

// Subunit is one lesson-sized slice of a unit.
type Subunit struct {
	Title          string  `json:"title"`
	EstimatedHours float64 `json:"estimatedHours"`
}

// ScheduleUnit is one curriculum unit with its subunits.
type ScheduleUnit struct {
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Subunits []Subunit `json:"subunits"`
}

// Schedule is a validated curriculum plan. GeneratedUnits reports how many
// units the model produced; callers compare it against their target themselves.
type Schedule struct {
	Units          []ScheduleUnit `json:"units"`
	GeneratedUnits int            `json:"generatedUnits"`
	Usage          provider.Usage `json:"usage"`
	CostUSD        float64        `json:"costUsd"`
}

// Scheduler plans curricula. Every unit must carry at least one subunit; the
// unit count itself is reported back rather than asserted.
type Scheduler struct {
	gen      Generator
	settings settings
}

// NewScheduler creates the scheduling pipeline around a generator.
func NewScheduler(gen Generator, options ...Option) *Scheduler {
	return &Scheduler{gen: gen, settings: newSettings(0.5, options)}
}

const scheduleSystemPrompt = `You are a curriculum designer.
Break the subject into teachable units and lesson-sized subunits. Respond with a single JSON object and nothing else.`

func schedulePrompt(input ScheduleInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan a curriculum for %q", input.Subject)
	if input.GradeLevel != "" {
		fmt.Fprintf(&sb, " at grade level %s", input.GradeLevel)
	}
	if input.DurationWeeks > 0 {
		fmt.Fprintf(&sb, " spanning %d weeks", input.DurationWeeks)
	}
	sb.WriteString(".\n")
	if target := swag.IntValue(input.TargetUnits); target > 0 {
		fmt.Fprintf(&sb, "Aim for roughly %d units.\n", target)
	}
	if notes := swag.StringValue(input.Notes); notes != "" {
		fmt.Fprintf(&sb, "Additional constraints:\n%s\n", notes)
	}
	sb.WriteString("Every unit needs a summary and at least one subunit with an estimated hour count.")
	return sb.String()
}

func scheduleSchema() *provider.StructuredOutput {
	subunit := objectSchema([]string{"title", "estimatedHours"},
		prop("title", stringSchema("subunit title")),
		prop("estimatedHours", numberSchema("estimated teaching hours")),
	)
	unit := objectSchema([]string{"title", "summary", "subunits"},
		prop("title", stringSchema("unit title")),
		prop("summary", stringSchema("what the unit covers")),
		prop("subunits", arraySchema("lesson-sized subunits", subunit)),
	)
	return &provider.StructuredOutput{
		Name:        "schedule",
		Description: "A curriculum plan of units and subunits",
		Schema: objectSchema([]string{"units"},
			prop("units", arraySchema("the curriculum units", unit)),
		),
	}
}

// Plan produces a validated curriculum plan.
func (s *Scheduler) Plan(ctx context.Context, input ScheduleInput) (*Schedule, error) {
	res, err := s.gen.Generate(ctx, provider.Request{
		SystemPrompt:   scheduleSystemPrompt,
		UserPrompt:     schedulePrompt(input),
		Temperature:    s.settings.temperature,
		Shape:          provider.ShapeJSONObject,
		ResponseSchema: scheduleSchema(),
	}, s.settings.callOptions()...)
	if err != nil {
		return nil, err
	}

	if err := extract.RequireFields(res.Parsed, "units"); err != nil {
		return nil, err
	}
	if err := extract.RequireEach(res.Parsed, "units", "title", "summary", "subunits"); err != nil {
		return nil, err
	}

	raw := res.Parsed.Get("units").Array()
	schedule := &Schedule{
		Units:          make([]ScheduleUnit, 0, len(raw)),
		GeneratedUnits: len(raw),
		Usage:          res.Usage,
		CostUSD:        res.CostUSD,
	}
	for i, ru := range raw {
		rawSubs := ru.Get("subunits").Array()
		if len(rawSubs) == 0 {
			return nil, aierr.SchemaViolation(
				fmt.Sprintf("units.%d.subunits", i),
				"every unit needs at least one subunit")
		}
		unit := ScheduleUnit{
			Title:    ru.Get("title").String(),
			Summary:  ru.Get("summary").String(),
			Subunits: make([]Subunit, 0, len(rawSubs)),
		}
		for _, rs := range rawSubs {
			unit.Subunits = append(unit.Subunits, Subunit{
				Title:          rs.Get("title").String(),
				EstimatedHours: rs.Get("estimatedHours").Float(),
			})
		}
		schedule.Units = append(schedule.Units, unit)
	}
	return schedule, nil
}
