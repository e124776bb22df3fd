package conversation

import (
	"sort"
	"time"
)

// Ranking weights. Availability dominates, with earliness of the offered
// slot and the provider's public rating splitting the rest.
const (
	weightAvailability = 0.4
	weightEarliness    = 0.3
	weightRating       = 0.3
)

// RankedResult is a campaign result annotated with its composite score and
// the per-dimension components that produced it.
type RankedResult struct {
	CampaignResult
	Score             float64
	AvailabilityScore float64
	EarlinessScore    float64
	RatingScore       float64
}

// Rank scores campaign results and orders them best first. The sort is
// stable, so equal scores keep their call-completion order. The input slice
// is not modified.
func Rank(results []CampaignResult, now time.Time) []RankedResult {
	ranked := make([]RankedResult, 0, len(results))
	for _, r := range results {
		rr := RankedResult{CampaignResult: r}
		rr.AvailabilityScore = availabilityScore(r)
		rr.EarlinessScore = earlinessScore(r, now)
		rr.RatingScore = ratingScore(r.Rating)
		rr.Score = weightAvailability*rr.AvailabilityScore +
			weightEarliness*rr.EarlinessScore +
			weightRating*rr.RatingScore
		ranked = append(ranked, rr)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func availabilityScore(r CampaignResult) float64 {
	if r.Summary == nil {
		return 0
	}
	if r.Summary.BookingConfirmed {
		return 1
	}
	if r.Summary.SlotDiscussed() {
		return 0.6
	}
	return 0
}

// earlinessScore rewards slots within the coming week; a same-day or
// past-due slot scores 1 and the score decays linearly to 0 at seven days
// out.
func earlinessScore(r CampaignResult, now time.Time) float64 {
	if r.Summary == nil || r.Summary.Date == "" {
		return 0
	}
	slot, err := time.Parse("2006-01-02", r.Summary.Date)
	if err != nil {
		return 0
	}
	days := int(slot.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	score := 1 - float64(days)/7
	if score < 0 {
		return 0
	}
	return score
}

// ratingScore maps a 0-5 public rating onto 0-1, with a neutral 0.5 when no
// rating is known.
func ratingScore(rating float64) float64 {
	if rating <= 0 {
		return 0.5
	}
	score := rating / 5
	if score > 1 {
		return 1
	}
	return score
}
