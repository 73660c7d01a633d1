package mcp

import "github.com/mark3labs/mcp-go/mcp"

const fromDescription = "Sender phone number, e.g. +15551234567 (a whatsapp: prefix is accepted)"

var messageToolDef = mcp.NewTool("nutrition_message",
	mcp.WithDescription("Process a chat message as if the user had sent it: food descriptions are analyzed and logged, questions are answered. Returns the reply and any logged entries."),
	mcp.WithString("from", mcp.Required(), mcp.Description(fromDescription)),
	mcp.WithString("message", mcp.Required(), mcp.Description("Message text, e.g. \"2 eggs and toast\" or \"how much protein is left today?\"")),
)

var dailySummaryToolDef = mcp.NewTool("nutrition_daily_summary",
	mcp.WithDescription("Totals, target progress and entries for one calendar day in the user's time zone."),
	mcp.WithString("from", mcp.Required(), mcp.Description(fromDescription)),
	mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD; defaults to today")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var periodSummaryToolDef = mcp.NewTool("nutrition_period_summary",
	mcp.WithDescription("Totals and target progress over an inclusive range of days. Targets are scaled by the number of days."),
	mcp.WithString("from", mcp.Required(), mcp.Description(fromDescription)),
	mcp.WithString("start", mcp.Required(), mcp.Description("First day, YYYY-MM-DD")),
	mcp.WithString("end", mcp.Required(), mcp.Description("Last day, YYYY-MM-DD (inclusive)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var entriesToolDef = mcp.NewTool("nutrition_entries",
	mcp.WithDescription("List logged food entries, most recent first."),
	mcp.WithString("from", mcp.Required(), mcp.Description(fromDescription)),
	mcp.WithNumber("limit", mcp.Description("Max entries to return (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Entries to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var setTargetsToolDef = mcp.NewTool("nutrition_set_targets",
	mcp.WithDescription("Set daily nutrition targets and time zone. Omitted fields keep their current value; names in clear are unset. Creates the user if needed."),
	mcp.WithString("from", mcp.Required(), mcp.Description(fromDescription)),
	mcp.WithNumber("calories", mcp.Description("Daily calorie target (kcal)"), mcp.Min(0)),
	mcp.WithNumber("protein", mcp.Description("Daily protein target (g)"), mcp.Min(0)),
	mcp.WithNumber("carbs", mcp.Description("Daily carbohydrate target (g)"), mcp.Min(0)),
	mcp.WithNumber("fat", mcp.Description("Daily fat target (g)"), mcp.Min(0)),
	mcp.WithArray("clear",
		mcp.Description("Targets to unset"),
		mcp.Items(map[string]any{"type": "string", "enum": []string{"calories", "protein", "carbs", "fat"}}),
	),
	mcp.WithString("timezone", mcp.Description("IANA time zone, e.g. America/New_York")),
)

var deleteEntryToolDef = mcp.NewTool("nutrition_delete_entry",
	mcp.WithDescription("Delete one logged food entry by ID."),
	mcp.WithString("from", mcp.Required(), mcp.Description(fromDescription)),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID from nutrition_entries")),
	mcp.WithDestructiveHintAnnotation(true),
)
