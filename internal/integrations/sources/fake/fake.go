package fake

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/BearBump/StayScout/internal/models"
)

// FakeFetcher — детерминированная заглушка площадки для демо и тестов.
// Набор и цены объявлений зависят только от destination, так что повторные
// проходы видят те же записи (и store их дедуплицирует).
type FakeFetcher struct {
	count int
}

func New() *FakeFetcher { return &FakeFetcher{count: 5} }

func (f *FakeFetcher) WithCount(n int) *FakeFetcher {
	if n > 0 {
		f.count = n
	}
	return f
}

func (f *FakeFetcher) Fetch(ctx context.Context, criteria models.SearchCriteria) ([]models.Candidate, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(criteria.Destination))
	seed := h.Sum32()

	out := make([]models.Candidate, 0, f.count)
	for i := 0; i < f.count; i++ {
		v := seed + uint32(i)*2654435761
		price := float64(150 + v%400)
		rating := 6.0 + float64(v%40)/10

		out = append(out, models.Candidate{
			Title:    fmt.Sprintf("Hotel %s #%d", criteria.Destination, i+1),
			Price:    price,
			Currency: "RON",
			Rating:   rating,
			Location: criteria.Destination,
			URL:      fmt.Sprintf("https://example.test/stay/%d", v),
			Source:   "fake",
		})
	}
	return out, nil
}
