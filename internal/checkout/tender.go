package checkout

import "sort"

// tenderDenominations are the cash denominations used to derive round
// tender suggestions, in rupiah, ascending.
var tenderDenominations = []int64{1000, 2000, 5000, 10000, 20000, 50000, 100000}

type tenderSuggestion struct {
	amount int64
	denom  int64
}

// RecommendTender proposes a small ascending set of round cash amounts a
// customer might hand over for the given total. The total itself is always
// included as the exact-change option. The result is a pure function of the
// input; the filter order below is load-bearing and must not be reordered.
func RecommendTender(total int64) []int64 {
	if total <= 0 {
		return []int64{total}
	}

	// Smallest multiple of each denomination at or above the total. When
	// two denominations land on the same amount, the larger bill wins.
	byAmount := make(map[int64]int64, len(tenderDenominations))
	for _, denom := range tenderDenominations {
		rem := total % denom
		if rem == 0 {
			continue
		}
		amount := total + (denom - rem)
		if best, ok := byAmount[amount]; !ok || denom > best {
			byAmount[amount] = denom
		}
	}

	candidates := make([]tenderSuggestion, 0, len(byAmount))
	for amount, denom := range byAmount {
		candidates = append(candidates, tenderSuggestion{amount: amount, denom: denom})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].amount < candidates[j].amount })

	// Domination filter: a suggestion is pointless when a cheaper surviving
	// suggestion already uses an equal-or-larger bill.
	survivors := make([]tenderSuggestion, 0, len(candidates))
	for _, cand := range candidates {
		dominated := false
		for _, kept := range survivors {
			if kept.denom >= cand.denom {
				dominated = true
				break
			}
		}
		if !dominated {
			survivors = append(survivors, cand)
		}
	}

	// 20k awkwardness: odd multiples of 20000 far above the total feel
	// unnatural unless they are also round 50000 multiples.
	amounts := []int64{total}
	for _, s := range survivors {
		if s.denom == 20000 && s.amount > 20000 && s.amount%50000 != 0 && s.amount-total > 10000 {
			continue
		}
		amounts = append(amounts, s.amount)
	}

	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })
	deduped := amounts[:0]
	for i, a := range amounts {
		if i == 0 || a != deduped[len(deduped)-1] {
			deduped = append(deduped, a)
		}
	}
	return deduped
}
