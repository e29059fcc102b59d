package triage

type band struct {
	minScore int
	priority Priority
	level    int
}

// Evaluated top-down; the first band whose minimum the score reaches wins.
var classifierBands = []band{
	{70, PriorityCritical, 1},
	{50, PriorityHigh, 2},
	{25, PriorityMedium, 3},
	{10, PriorityLow, 4},
}

// Classify maps a risk score to its priority class and triage level
// (1 most urgent .. 5 routine).
func Classify(score int) (Priority, int) {
	for _, b := range classifierBands {
		if score >= b.minScore {
			return b.priority, b.level
		}
	}
	return PriorityLow, 5
}

var waitMinutes = map[int]int{1: 0, 2: 15, 3: 60, 4: 120, 5: 240}

// EstimateWait returns the expected wait in minutes for a triage level.
// Levels outside 1..5 are treated as routine.
func EstimateWait(level int) int {
	if m, ok := waitMinutes[level]; ok {
		return m
	}
	return waitMinutes[5]
}
