package workflow

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/pitabwire/tripflow/model"
)

const (
	forecastHorizonDays = 16
	readinessOK         = 80
	readinessWatch      = 55
)

var (
	stormWarning   = regexp.MustCompile(`(?i)(storm|blizzard|avalanche|whiteout|high wind)`)
	lowSnowWarning = regexp.MustCompile(`(?i)(low snow|thin cover|limited terrain|\brain\b|\bwarm\b)`)
	liftWarning    = regexp.MustCompile(`(?i)(lift (closure|closed|hold)|wind hold|terrain closed)`)
	roadWarning    = regexp.MustCompile(`(?i)(chain|road closure|pass closed|i-70|traction law|icy road)`)
)

// deriveOperations runs the four named checks and the composite readiness
// score.
func deriveOperations(spec model.TripSpec, decision model.DecisionPackage, locks []model.LockedDecision, tasks []model.Task, links model.LinkHealth, now time.Time) model.Operations {
	today := now.Truncate(24 * time.Hour)
	start, hasStart := tripStart(spec, decision)
	daysUntil := 0
	if hasStart {
		daysUntil = int(math.Floor(start.Sub(today).Hours() / 24))
	}
	warnings := warningText(decision)

	checks := []model.OperationalCheck{
		weatherCheck(hasStart, daysUntil, warnings),
		liftCheck(hasStart, start, warnings),
		roadsCheck(spec, warnings),
		airportCheck(spec, locks, hasStart, daysUntil),
	}

	warningChecks := 0
	for _, c := range checks {
		if c.Status == model.CheckWarning {
			warningChecks++
		}
	}

	factors := []float64{
		linkFactor(links),
		1 - overdueRatio(tasks, today),
		completionRatio(tasks),
		1 - float64(warningChecks)/float64(len(checks)),
	}
	sum := 0.0
	for _, f := range factors {
		sum += f
	}
	score := int(math.Round(sum / float64(len(factors)) * 100))

	status := model.CheckWarning
	switch {
	case score >= readinessOK:
		status = model.CheckOK
	case score >= readinessWatch:
		status = model.CheckWatch
	}
	checks = append(checks, model.OperationalCheck{
		ID:     model.CheckTripWeekReadiness,
		Status: status,
		Detail: fmt.Sprintf("Trip-week readiness score %d/100", score),
	})

	return model.Operations{Checks: checks, ReadinessScore: score}
}

// tripStart prefers the spec's start date, then the first candidate's.
func tripStart(spec model.TripSpec, decision model.DecisionPackage) (time.Time, bool) {
	if t, ok := spec.StartDate(); ok {
		return t, true
	}
	for _, it := range decision.Itineraries {
		if t, ok := model.ParseDate(it.StartDate); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func warningText(decision model.DecisionPackage) string {
	var parts []string
	for _, it := range decision.Itineraries {
		parts = append(parts, it.Warnings...)
	}
	return strings.Join(parts, "\n")
}

func weatherCheck(hasStart bool, daysUntil int, warnings string) model.OperationalCheck {
	c := model.OperationalCheck{ID: model.CheckWeatherSnow}
	switch {
	case stormWarning.MatchString(warnings):
		c.Status, c.Detail = model.CheckWarning, "Storm conditions flagged for a candidate resort"
	case lowSnowWarning.MatchString(warnings):
		c.Status, c.Detail = model.CheckWarning, "Low snow conditions flagged for a candidate resort"
	case !hasStart:
		c.Status, c.Detail = model.CheckUnknown, "No trip dates yet"
	case daysUntil > forecastHorizonDays:
		c.Status, c.Detail = model.CheckWatch, fmt.Sprintf("Trip starts in %d days, beyond the forecast horizon", daysUntil)
	default:
		c.Status, c.Detail = model.CheckOK, "No weather concerns reported"
	}
	return c
}

func liftCheck(hasStart bool, start time.Time, warnings string) model.OperationalCheck {
	c := model.OperationalCheck{ID: model.CheckLiftOps}
	if liftWarning.MatchString(warnings) {
		c.Status, c.Detail = model.CheckWarning, "Lift closures reported"
		return c
	}
	if !hasStart {
		c.Status, c.Detail = model.CheckUnknown, "No trip dates yet"
		return c
	}
	switch start.Month() {
	case time.December, time.January, time.February, time.March:
		c.Status, c.Detail = model.CheckOK, "Trip falls in peak lift season"
	case time.November, time.April:
		c.Status, c.Detail = model.CheckWatch, "Trip falls at the edge of lift season"
	default:
		c.Status, c.Detail = model.CheckWarning, "Trip falls outside the usual lift season"
	}
	return c
}

func roadsCheck(spec model.TripSpec, warnings string) model.OperationalCheck {
	c := model.OperationalCheck{ID: model.CheckRoads}
	switch {
	case spec.Travel.Mode != model.TravelModeDrive && spec.Travel.Mode != model.TravelModeEither:
		c.Status, c.Detail = model.CheckOK, "Group is not driving"
	case roadWarning.MatchString(warnings):
		c.Status, c.Detail = model.CheckWarning, "Road restrictions reported on the drive"
	case spec.Travel.MaxDriveHours > 6:
		c.Status, c.Detail = model.CheckWatch, "Long drive; check mountain pass conditions the day before"
	default:
		c.Status, c.Detail = model.CheckOK, "No road concerns reported"
	}
	return c
}

func airportCheck(spec model.TripSpec, locks []model.LockedDecision, hasStart bool, daysUntil int) model.OperationalCheck {
	c := model.OperationalCheck{ID: model.CheckAirportTiming}
	switch {
	case spec.DrivingOnly():
		c.Status, c.Detail = model.CheckOK, "Driving trip; no flights needed"
	case isLocked(locks, model.DecisionTransport):
		c.Status, c.Detail = model.CheckOK, "Transport is locked"
	case !hasStart:
		c.Status, c.Detail = model.CheckUnknown, "No trip dates yet"
	case daysUntil <= 21:
		c.Status, c.Detail = model.CheckWarning, fmt.Sprintf("Trip starts in %d days and transport is not locked", daysUntil)
	default:
		c.Status, c.Detail = model.CheckWatch, "Transport is not locked yet"
	}
	if c.Status != model.CheckOK && spec.Travel.ArrivalAirport != "" {
		c.Detail += fmt.Sprintf(" (arrival airport %s)", spec.Travel.ArrivalAirport)
	}
	return c
}

func linkFactor(links model.LinkHealth) float64 {
	if len(links.Records) == 0 {
		return 1
	}
	return 1 - float64(brokenLinks(links))/float64(len(links.Records))
}

func overdueRatio(tasks []model.Task, today time.Time) float64 {
	if len(tasks) == 0 {
		return 0
	}
	overdue := 0
	for _, t := range tasks {
		if t.Status == model.TaskStatusDone {
			continue
		}
		if due, ok := model.ParseDate(t.DueDate); ok && due.Before(today) {
			overdue++
		}
	}
	return float64(overdue) / float64(len(tasks))
}

func completionRatio(tasks []model.Task) float64 {
	if len(tasks) == 0 {
		return 1
	}
	done := 0
	for _, t := range tasks {
		if t.Status == model.TaskStatusDone {
			done++
		}
	}
	return float64(done) / float64(len(tasks))
}

// warningCheckIDs lists the checks currently in warning status.
func warningCheckIDs(ops model.Operations) []string {
	var ids []string
	for _, c := range ops.Checks {
		if c.Status == model.CheckWarning {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
