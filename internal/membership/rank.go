package membership

import (
	"strings"

	"github.com/noah-isme/backend-kopi/internal/pricing"
)

// tier thresholds on cumulative paid spend, highest first.
var tiers = []struct {
	min  int64
	rank pricing.Rank
}{
	{10_000_000, pricing.RankDiamond},
	{5_000_000, pricing.RankGold},
	{2_000_000, pricing.RankSilver},
	{500_000, pricing.RankBronze},
}

// RankForSpend returns the rank earned by a cumulative spend.
func RankForSpend(total int64) pricing.Rank {
	for _, t := range tiers {
		if total >= t.min {
			return t.rank
		}
	}
	return pricing.RankNone
}

// NormalisePhone strips formatting and rewrites the +84 country prefix to a leading zero.
func NormalisePhone(raw string) string {
	var b strings.Builder
	trimmed := strings.TrimSpace(raw)
	for i, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	switch {
	case strings.HasPrefix(phone, "+84"):
		phone = "0" + strings.TrimPrefix(phone, "+84")
	case strings.HasPrefix(phone, "84") && len(phone) == 11:
		phone = "0" + strings.TrimPrefix(phone, "84")
	}
	return strings.TrimPrefix(phone, "+")
}
