package sampling

import (
	"sort"

	"github.com/zombar/reviewinsights/internal/models"
)

// Sample reduces reviews to at most targetSize elements using the named
// strategy. Selection is deterministic: the same input and target always
// yield the same membership, so tests can assert exact contents. The full
// strategy is the identity function.
func Sample(reviews []models.SanitizedReview, strategy string, targetSize int) []models.SanitizedReview {
	switch strategy {
	case models.SamplingRepresentative:
		return Representative(reviews, targetSize)
	case models.SamplingRecentWeighted:
		return RecentWeighted(reviews, targetSize)
	default:
		return reviews
	}
}

// Representative stratifies by integer rating and takes a share of
// targetSize from each stratum proportional to the stratum's size, making
// sure every present rating value is represented when the target allows.
// The total never exceeds targetSize.
func Representative(reviews []models.SanitizedReview, targetSize int) []models.SanitizedReview {
	if targetSize >= len(reviews) || targetSize <= 0 {
		if targetSize <= 0 {
			return []models.SanitizedReview{}
		}
		return reviews
	}

	// Strata keyed by rating 1..5; out-of-range ratings are clamped so a
	// malformed review still lands in a bucket rather than being dropped.
	strata := make(map[int][]int) // rating -> input indices, in input order
	for i, r := range reviews {
		rating := r.Rating
		if rating < 1 {
			rating = 1
		} else if rating > 5 {
			rating = 5
		}
		strata[rating] = append(strata[rating], i)
	}

	total := len(reviews)
	shares := make(map[int]int)
	assigned := 0
	for rating := 1; rating <= 5; rating++ {
		indices, ok := strata[rating]
		if !ok {
			continue
		}
		share := targetSize * len(indices) / total
		if share == 0 {
			share = 1 // keep every present rating represented
		}
		if share > len(indices) {
			share = len(indices)
		}
		shares[rating] = share
		assigned += share
	}

	// Shrink from the largest strata first when minimum representation
	// overshot the target; grow the under-filled strata when flooring left
	// budget unused. Fixed rating order keeps both passes deterministic.
	for assigned > targetSize {
		largest, largestRating := 0, 0
		for rating := 5; rating >= 1; rating-- {
			if shares[rating] > largest {
				largest = shares[rating]
				largestRating = rating
			}
		}
		shares[largestRating]--
		assigned--
	}
	for assigned < targetSize {
		grew := false
		for rating := 1; rating <= 5; rating++ {
			if assigned == targetSize {
				break
			}
			if shares[rating] < len(strata[rating]) {
				shares[rating]++
				assigned++
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	var selected []int
	for rating := 1; rating <= 5; rating++ {
		indices := strata[rating]
		for i := 0; i < shares[rating] && i < len(indices); i++ {
			selected = append(selected, indices[i])
		}
	}
	sort.Ints(selected) // preserve input order in the output

	out := make([]models.SanitizedReview, 0, len(selected))
	for _, i := range selected {
		out = append(out, reviews[i])
	}
	return out
}

// RecentWeighted biases selection toward the most recent reviews while
// retaining a smaller, evenly spread share of older ones. The most recent
// review is always included when targetSize >= 1.
func RecentWeighted(reviews []models.SanitizedReview, targetSize int) []models.SanitizedReview {
	if targetSize <= 0 {
		return []models.SanitizedReview{}
	}

	// ISO dates order lexicographically; undated reviews sort last. Ties
	// fall back to input position so the ordering is total.
	ordered := make([]int, len(reviews))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		da, db := reviews[ordered[a]].Date, reviews[ordered[b]].Date
		if da != db {
			if da == "" {
				return false
			}
			if db == "" {
				return true
			}
			return da > db
		}
		return ordered[a] < ordered[b]
	})

	if targetSize >= len(reviews) {
		out := make([]models.SanitizedReview, len(reviews))
		for i, idx := range ordered {
			out[i] = reviews[idx]
		}
		return out
	}

	// 70% of the budget goes to the newest reviews, the rest is spread
	// evenly across the older remainder.
	recentShare := (targetSize*7 + 9) / 10
	if recentShare < 1 {
		recentShare = 1
	}
	if recentShare > targetSize {
		recentShare = targetSize
	}

	out := make([]models.SanitizedReview, 0, targetSize)
	for i := 0; i < recentShare; i++ {
		out = append(out, reviews[ordered[i]])
	}

	olderBudget := targetSize - recentShare
	older := ordered[recentShare:]
	if olderBudget > 0 && len(older) > 0 {
		step := len(older) / olderBudget
		if step < 1 {
			step = 1
		}
		for i := 0; i < len(older) && olderBudget > 0; i += step {
			out = append(out, reviews[older[i]])
			olderBudget--
		}
	}
	return out
}
