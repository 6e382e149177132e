package campaign

// TimeOfDay is a coarse segment of the in-world day.
type TimeOfDay string

// Day segments in order. Night wraps back to dawn and advances the day count.
var daySegments = []TimeOfDay{"dawn", "morning", "midday", "afternoon", "dusk", "night"}

// Weather is the current ambient weather band.
type Weather string

// Weather bands by d20 roll at each time-of-day boundary.
var weatherBands = []struct {
	max     int
	weather Weather
}{
	{10, "clear"},
	{14, "overcast"},
	{17, "rain"},
	{19, "fog"},
	{20, "storm"},
}

// actionsPerSegment is how many logged player actions advance the clock one
// time-of-day segment.
const actionsPerSegment = 6

// WorldClock tracks in-world time. It advances as player actions accumulate,
// giving the narrator a consistent sense of elapsed fiction time.
type WorldClock struct {
	Day         int       `json:"day"`
	Segment     TimeOfDay `json:"segment"`
	Weather     Weather   `json:"weather"`
	ActionCount int       `json:"action_count"`
}

// NewWorldClock starts at dawn of day one under clear skies.
func NewWorldClock() WorldClock {
	return WorldClock{Day: 1, Segment: "dawn", Weather: "clear"}
}

// Tick counts one player action and reports whether the clock crossed into a
// new time-of-day segment. On a crossing the caller supplies a weather roll
// via SetWeatherRoll.
func (c WorldClock) Tick() (WorldClock, bool) {
	c.ActionCount++
	if c.ActionCount < actionsPerSegment {
		return c, false
	}
	c.ActionCount = 0
	index := 0
	for i, segment := range daySegments {
		if segment == c.Segment {
			index = i
			break
		}
	}
	index++
	if index >= len(daySegments) {
		index = 0
		c.Day++
	}
	c.Segment = daySegments[index]
	return c, true
}

// SetWeatherRoll maps a d20 roll onto a weather band.
func (c WorldClock) SetWeatherRoll(roll int) WorldClock {
	for _, band := range weatherBands {
		if roll <= band.max {
			c.Weather = band.weather
			return c
		}
	}
	c.Weather = weatherBands[len(weatherBands)-1].weather
	return c
}
