package service

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/models"
	"github.com/schedsnap/schedsnap-api/internal/timeutil"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

// googleEventColors is the provider's event color palette ("colorId" 1-11).
var googleEventColors = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}

// CalendarService turns a validated schedule plus a target timezone into
// provider-ready recurring event descriptors. Format is pure apart from the
// injectable random source used for color assignment.
type CalendarService struct {
	reminderMinutes int
	newRand         func() *rand.Rand
	logger          *zap.Logger
}

// NewCalendarService constructs the formatter. A nil randFn falls back to a
// time-seeded source; tests inject a deterministic one.
func NewCalendarService(reminderMinutes int, randFn func() *rand.Rand, logger *zap.Logger) *CalendarService {
	if reminderMinutes <= 0 {
		reminderMinutes = 10
	}
	if randFn == nil {
		randFn = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{reminderMinutes: reminderMinutes, newRand: randFn, logger: logger}
}

// Format computes one descriptor per formattable event. Schedule-level
// problems (bad timezone, missing term dates) reject the whole call with a
// distinguished error; event-level problems skip that event and continue.
func (s *CalendarService) Format(schedule *models.ScheduleData, timezone string) ([]models.EventDescriptor, error) {
	if timezone == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidTimezone, "timezone is required")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status,
			fmt.Sprintf("unknown timezone %q", timezone))
	}

	termStart, termEnd, err := parseTermDates(schedule)
	if err != nil {
		return nil, err
	}

	// One day past the term end at midnight UTC, so the term's last
	// calendar day stays inclusive under the rule's exclusive-until
	// semantics.
	until := time.Date(termEnd.Year(), termEnd.Month(), termEnd.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	picker := newColorPicker(s.newRand())
	descriptors := make([]models.EventDescriptor, 0, len(schedule.Events))

	for i, event := range schedule.Events {
		descriptor, skipReason := s.formatEvent(event, termStart, until, loc, picker)
		if descriptor == nil {
			s.logger.Sugar().Warnw("event skipped during formatting", "index", i, "course_code", event.CourseCode, "reason", skipReason)
			continue
		}
		descriptors = append(descriptors, *descriptor)
	}

	return descriptors, nil
}

func (s *CalendarService) formatEvent(event models.ScheduleEvent, termStart, until time.Time, loc *time.Location, picker *colorPicker) (*models.EventDescriptor, string) {
	weekdaySet := make(map[time.Weekday]bool, len(event.Days))
	byDays := make([]rrule.Weekday, 0, len(event.Days))
	for _, name := range event.Days {
		day, ok := timeutil.Weekday(name)
		if !ok {
			continue
		}
		if weekdaySet[day] {
			continue
		}
		weekdaySet[day] = true
		token, _ := timeutil.RecurrenceWeekday(name)
		byDays = append(byDays, token)
	}
	if len(byDays) == 0 {
		return nil, "no recognised weekdays"
	}

	startMinutes, err := timeutil.ParseClock(event.StartTime)
	if err != nil {
		return nil, "unparseable start time"
	}
	endMinutes, err := timeutil.ParseClock(event.EndTime)
	if err != nil {
		return nil, "unparseable end time"
	}
	if startMinutes >= endMinutes {
		return nil, "start time is not before end time"
	}

	firstDate, ok := firstOccurrenceDate(termStart, weekdaySet)
	if !ok {
		return nil, "no selected weekday matches the term"
	}

	start := time.Date(firstDate.Year(), firstDate.Month(), firstDate.Day(), startMinutes/60, startMinutes%60, 0, 0, loc)
	end := time.Date(firstDate.Year(), firstDate.Month(), firstDate.Day(), endMinutes/60, endMinutes%60, 0, 0, loc)

	if !start.Before(until) {
		return nil, "first occurrence falls outside the term"
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDays,
		Until:     until,
	})
	if err != nil {
		return nil, fmt.Sprintf("recurrence rule rejected: %v", err)
	}

	return &models.EventDescriptor{
		Summary:         eventSummary(event),
		Location:        derefString(event.Location),
		Description:     derefString(event.SectionDetails),
		Start:           start,
		End:             end,
		Timezone:        loc.String(),
		Recurrence:      "RRULE:" + rule.OrigOptions.RRuleString(),
		ColorID:         picker.colorFor(event.CourseCode),
		ReminderMinutes: s.reminderMinutes,
	}, ""
}

// firstOccurrenceDate finds the first calendar date on/after the term start
// whose weekday is the earliest of the selected weekdays.
func firstOccurrenceDate(termStart time.Time, weekdaySet map[time.Weekday]bool) (time.Time, bool) {
	for offset := 0; offset < 7; offset++ {
		candidate := termStart.AddDate(0, 0, offset)
		if weekdaySet[candidate.Weekday()] {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func parseTermDates(schedule *models.ScheduleData) (time.Time, time.Time, error) {
	var zero time.Time
	if schedule == nil || schedule.TermStartDate == nil || schedule.TermEndDate == nil {
		return zero, zero, appErrors.Clone(appErrors.ErrInvalidTermDates, "term start and end dates are required")
	}
	start, err := time.Parse(timeutil.DateLayout, *schedule.TermStartDate)
	if err != nil {
		return zero, zero, appErrors.Wrap(err, appErrors.ErrInvalidTermDates.Code, appErrors.ErrInvalidTermDates.Status,
			fmt.Sprintf("malformed term start date %q", *schedule.TermStartDate))
	}
	end, err := time.Parse(timeutil.DateLayout, *schedule.TermEndDate)
	if err != nil {
		return zero, zero, appErrors.Wrap(err, appErrors.ErrInvalidTermDates.Code, appErrors.ErrInvalidTermDates.Status,
			fmt.Sprintf("malformed term end date %q", *schedule.TermEndDate))
	}
	if end.Before(start) {
		return zero, zero, appErrors.Clone(appErrors.ErrInvalidTermDates, "term end date precedes start date")
	}
	return start, end, nil
}

func eventSummary(event models.ScheduleEvent) string {
	if event.CourseName != nil && *event.CourseName != "" {
		return fmt.Sprintf("%s (%s)", event.CourseCode, *event.CourseName)
	}
	return event.CourseCode
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// colorPicker assigns palette colors without replacement, cycling once the
// shuffled palette is exhausted. Scoped to one Format call; the same course
// code always maps to the same color within a call.
type colorPicker struct {
	palette  []string
	cursor   int
	assigned map[string]string
}

func newColorPicker(rng *rand.Rand) *colorPicker {
	palette := make([]string, len(googleEventColors))
	copy(palette, googleEventColors)
	rng.Shuffle(len(palette), func(i, j int) {
		palette[i], palette[j] = palette[j], palette[i]
	})
	return &colorPicker{palette: palette, assigned: make(map[string]string)}
}

func (p *colorPicker) colorFor(courseCode string) string {
	if color, ok := p.assigned[courseCode]; ok {
		return color
	}
	color := p.palette[p.cursor%len(p.palette)]
	p.cursor++
	p.assigned[courseCode] = color
	return color
}
