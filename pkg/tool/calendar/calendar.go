package calendar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/tool"
)

const (
	defaultCalendarName = "Travel Itinerary"
	defaultDuration     = time.Hour
	reminderTrigger     = "-PT30M"
)

var unsafeNameChars = regexp.MustCompile(`[^\w\-_]`)

type calendarTool struct {
	writer  adapter.CalendarWriter
	baseDir string
	now     func() time.Time
}

type Option func(*calendarTool)

// WithClock overrides the timestamp source used for filenames
func WithClock(now func() time.Time) Option {
	return func(x *calendarTool) {
		x.now = now
	}
}

// New creates the calendar generation tool. Files are written below baseDir
// in one directory per user.
func New(writer adapter.CalendarWriter, baseDir string, opts ...Option) tool.Tool {
	x := &calendarTool{
		writer:  writer,
		baseDir: baseDir,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *calendarTool) Flags() []cli.Flag {
	return nil
}

func (x *calendarTool) Prompt(ctx context.Context) string {
	return "Use generate_calendar_ics when you have a finalized itinerary. Pass a simple events array with title, date, optional times/location/notes."
}

func (x *calendarTool) Specs() []openai.Tool {
	eventSchema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"title":      {Type: "string", Description: "Event title"},
			"date":       {Type: "string", Description: "Event date, YYYY-MM-DD"},
			"start_time": {Type: "string", Description: "Optional start time, HH:MM"},
			"end_time":   {Type: "string", Description: "Optional end time, HH:MM"},
			"location":   {Type: "string", Description: "Optional location"},
			"notes":      {Type: "string", Description: "Optional notes"},
		},
		Required: []string{"title", "date"},
	}

	return []openai.Tool{
		tool.NewFunction(
			"generate_calendar_ics",
			"📅 Generate a downloadable calendar file (.ics) from a simple travel itinerary. "+
				"Use when you have a finalized schedule with dates and times. "+
				"Arguments: either events (array) OR a single event via title+date; plus trip_name (optional). "+
				"Examples: date='2026-06-05', start_time='14:30', end_time='16:00'. "+
				"Returns file_path for user to open.",
			&jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"events":     {Type: "array", Description: "Itinerary events", Items: eventSchema},
					"trip_name":  {Type: "string", Description: "Optional trip name used as the calendar title"},
					"title":      {Type: "string", Description: "Single-event form: event title"},
					"date":       {Type: "string", Description: "Single-event form: date, YYYY-MM-DD"},
					"start_time": {Type: "string", Description: "Single-event form: start time, HH:MM"},
					"end_time":   {Type: "string", Description: "Single-event form: end time, HH:MM"},
					"location":   {Type: "string", Description: "Single-event form: location"},
					"notes":      {Type: "string", Description: "Single-event form: notes"},
				},
			},
		),
	}
}

type eventInput struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location"`
	Notes     string `json:"notes"`
}

type generateInput struct {
	Events   []eventInput `json:"events"`
	TripName string       `json:"trip_name"`

	// Single-event form
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location"`
	Notes     string `json:"notes"`
}

func (x *calendarTool) Execute(ctx context.Context, name string, args json.RawMessage) (*model.ToolResult, error) {
	var input generateInput
	if err := json.Unmarshal(args, &input); err != nil {
		return model.ErrorResult(fmt.Sprintf("invalid calendar arguments: %v", err)), nil
	}

	tool.Emit(ctx, model.NewUIEvent(model.EventToolLog, "🔧", "generate_calendar_ics", "Creating .ics file"))

	events := input.Events
	if len(events) == 0 {
		if input.Title == "" || input.Date == "" {
			return &model.ToolResult{Error: "No events provided", EventsCount: 0}, nil
		}
		events = []eventInput{{
			Title:     input.Title,
			Date:      input.Date,
			StartTime: input.StartTime,
			EndTime:   input.EndTime,
			Location:  input.Location,
			Notes:     input.Notes,
		}}
	}

	userID := tool.UserIDFrom(ctx)

	cal := ics.NewCalendar()
	cal.SetXWRCalName(orDefault(input.TripName, defaultCalendarName))

	validCount := 0
	for _, ev := range events {
		if err := x.addEvent(cal, ev, userID); err != nil {
			// A bad event never fails the batch
			tool.Log(ctx, fmt.Sprintf("⚠️ Skipping event %q: %v", ev.Title, err))
			continue
		}
		validCount++
	}

	tripName := orDefault(input.TripName, "itinerary")
	safeName := unsafeNameChars.ReplaceAllString(tripName, "_")
	if len(safeName) > 30 {
		safeName = safeName[:30]
	}
	filename := fmt.Sprintf("%s_%s.ics", x.now().Format("20060102_150405"), safeName)

	path, err := filepath.Abs(filepath.Join(x.baseDir, userID, filename))
	if err != nil {
		path = filepath.Join(x.baseDir, userID, filename)
	}

	if err := x.writer.Write(cal, path); err != nil {
		errMsg := fmt.Sprintf("❌ CALENDAR ERROR: %v", err)
		tool.Emit(ctx, model.NewUIEvent(model.EventToolLog, "❌", "generate_calendar_ics error", err.Error()))
		return &model.ToolResult{Error: errMsg, EventsCount: 0}, nil
	}

	completeMsg := fmt.Sprintf("%d events in %s", validCount, filename)
	tool.Emit(ctx, model.NewUIEvent(model.EventToolResult, "✅", "generate_calendar_ics finished", completeMsg).
		WithExtra("file_path", path).
		WithExtra("filename", filename).
		WithExtra("events_count", validCount))

	return &model.ToolResult{
		Status:      "ok",
		Message:     completeMsg,
		FilePath:    path,
		Filename:    filename,
		EventsCount: validCount,
	}, nil
}

// addEvent validates one itinerary entry and appends it to the calendar.
// Timed entries get an end time (explicit or one hour after start) and a
// display reminder 30 minutes before start; entries without a start time
// become all-day events.
func (x *calendarTool) addEvent(cal *ics.Calendar, input eventInput, userID string) error {
	if input.Title == "" || input.Date == "" {
		return goerr.New("missing title or date")
	}

	date, err := time.ParseInLocation("2006-01-02", input.Date, time.UTC)
	if err != nil {
		return goerr.Wrap(err, "invalid date", goerr.V("date", input.Date))
	}

	ev := cal.AddEvent(EventUID(userID, input.Title, input.Date, input.StartTime))
	ev.SetSummary(input.Title)

	if input.StartTime != "" {
		start, err := combine(date, input.StartTime)
		if err != nil {
			return goerr.Wrap(err, "invalid start time", goerr.V("start_time", input.StartTime))
		}

		end := start.Add(defaultDuration)
		if input.EndTime != "" {
			end, err = combine(date, input.EndTime)
			if err != nil {
				return goerr.Wrap(err, "invalid end time", goerr.V("end_time", input.EndTime))
			}
		}

		ev.SetStartAt(start)
		ev.SetEndAt(end)

		alarm := ev.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(reminderTrigger)
		alarm.SetProperty(ics.ComponentPropertyDescription, "Reminder: "+input.Title)
	} else {
		ev.SetAllDayStartAt(date)
		ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
	}

	if input.Location != "" {
		ev.SetLocation(input.Location)
	}
	if input.Notes != "" {
		ev.SetDescription(input.Notes)
	}

	return nil
}

// EventUID derives a deterministic identifier so repeated identical requests
// produce the same event id
func EventUID(userID, title, date, startTime string) string {
	source := fmt.Sprintf("%s:%s:%s:%s", userID, title, date, startTime)
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])[:12] + "@travel-agent"
}

func combine(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
