package kubedrill

// --- Task advancement ---

// AdvanceTasks applies the monotonic task-advancement rule to a completed
// prefix of tasks, given the evaluation score.
//
// With k tasks already completed, the next task is unlocked iff
// score > k/len(tasks). At most one task advances per call regardless of how
// high the score is: a perfect score from a cold start unlocks only the first
// task. This rate limit is deliberate — it stops a single generous score from
// skipping the exercise.
//
// The input slice is never mutated; the returned slice is always a prefix of
// tasks in canonical order.
func AdvanceTasks(tasks, completed []string, score float64) []string {
	k := len(completed)
	next := make([]string, k, k+1)
	copy(next, completed)

	if len(tasks) == 0 || k >= len(tasks) {
		return next
	}
	if score > AdvanceThreshold(k, len(tasks)) {
		next = append(next, tasks[k])
	}
	return next
}

// AdvanceThreshold returns the score a learner must exceed to unlock the
// next task: completed/total. With nothing completed any positive score
// advances.
func AdvanceThreshold(completed, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(completed) / float64(total)
}
