package agent

import (
	"sort"
	"strings"

	"github.com/BearBump/StayScout/internal/models"
)

// Статические кросс-курсы с RON в роли пивота. Для фильтра бюджета хватает
// приблизительных значений; точность конверсии здесь не критична.
var exchangeRates = map[[2]string]float64{
	{"EUR", "RON"}: 4.98,
	{"USD", "RON"}: 4.52,
	{"RON", "EUR"}: 0.20,
	{"RON", "USD"}: 0.22,
	{"USD", "EUR"}: 0.92,
	{"EUR", "USD"}: 1.09,
}

func convertCurrency(amount float64, from, to string) float64 {
	if from == to {
		return amount
	}
	if rate, ok := exchangeRates[[2]string{from, to}]; ok {
		return amount * rate
	}
	if from != "RON" && to != "RON" {
		return convertCurrency(convertCurrency(amount, from, "RON"), "RON", to)
	}
	return amount
}

// applyFilters — чистый конвейер: бюджет (с конверсией валюты), минимальный
// рейтинг, схлопывание дублей по нормализованным title+location, сортировка
// по цене. Кандидаты после фильтра несут цену в валюте критериев.
func applyFilters(candidates []models.Candidate, criteria models.SearchCriteria) []models.Candidate {
	out := filterByPrice(candidates, criteria)
	out = filterByRating(out, criteria.MinRating)
	out = collapseDuplicates(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func filterByPrice(candidates []models.Candidate, criteria models.SearchCriteria) []models.Candidate {
	if criteria.MaxPrice <= 0 {
		return candidates
	}

	var out []models.Candidate
	for _, c := range candidates {
		converted := convertCurrency(c.Price, c.Currency, criteria.Currency)
		if converted <= criteria.MaxPrice {
			c.Price = converted
			c.Currency = criteria.Currency
			out = append(out, c)
		}
	}
	return out
}

func filterByRating(candidates []models.Candidate, minRating float64) []models.Candidate {
	if minRating <= 0 {
		return candidates
	}

	var out []models.Candidate
	for _, c := range candidates {
		if c.Rating >= minRating {
			out = append(out, c)
		}
	}
	return out
}

func collapseDuplicates(candidates []models.Candidate) []models.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	var out []models.Candidate
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c.Title)) + "|" + strings.ToLower(strings.TrimSpace(c.Location))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
