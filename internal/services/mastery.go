package services

import "wordgames/internal/models"

// clampMastery bounds a mastery value to [MinMastery, MaxMastery]
func clampMastery(m int) int {
	if m < models.MinMastery {
		return models.MinMastery
	}
	if m > models.MaxMastery {
		return models.MaxMastery
	}
	return m
}

// computeDeltas nets +1 per correct and -1 per wrong occurrence of each word.
// order lists each distinct word once, in first-seen order.
func computeDeltas(correctWords, wrongWords []string) (deltas map[string]int, order []string) {
	deltas = map[string]int{}
	add := func(word string, change int) {
		if word == "" {
			return
		}
		if _, ok := deltas[word]; !ok {
			order = append(order, word)
		}
		deltas[word] += change
	}

	for _, w := range correctWords {
		add(w, 1)
	}
	for _, w := range wrongWords {
		add(w, -1)
	}
	return deltas, order
}
