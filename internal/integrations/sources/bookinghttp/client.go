package bookinghttp

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/StayScout/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"github.com/pkg/errors"
)

const sourceName = "booking"

// Client извлекает объявления из HTML выдачи Booking.com. Селекторы по
// data-testid периодически меняются, поэтому на каждый есть fallback.
type Client struct {
	baseURL    string
	httpc      *http.Client
	maxResults int
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://www.booking.com"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxResults: 25,
	}
}

func (c *Client) WithMaxResults(n int) *Client {
	if n > 0 {
		c.maxResults = n
	}
	return c
}

func (c *Client) searchURL(criteria models.SearchCriteria) string {
	q := url.Values{}
	q.Set("ss", criteria.Destination)
	q.Set("checkin", criteria.CheckIn.Format("2006-01-02"))
	q.Set("checkout", criteria.CheckOut.Format("2006-01-02"))
	q.Set("group_adults", strconv.Itoa(criteria.Guests))
	q.Set("group_children", "0")
	q.Set("no_rooms", "1")
	q.Set("sb_price_type", "total")
	q.Set("lang", "ro")
	return c.baseURL + "/searchresults.html?" + q.Encode()
}

func (c *Client) Fetch(ctx context.Context, criteria models.SearchCriteria) ([]models.Candidate, error) {
	u := c.searchURL(criteria)

	var doc *goquery.Document
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "new request"))
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
			req.Header.Set("Accept-Language", "ro-RO,ro;q=0.9,en;q=0.8")

			resp, err := c.httpc.Do(req)
			if err != nil {
				return errors.Wrap(err, "do request")
			}
			defer resp.Body.Close()

			if resp.StatusCode/100 != 2 {
				return errors.Errorf("booking http %d", resp.StatusCode)
			}

			doc, err = goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "parse html"))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}

	cards := doc.Find(`div[data-testid="property-card"]`)
	if cards.Length() == 0 {
		// Старая разметка выдачи.
		cards = doc.Find("div.sr_property_block")
	}

	var out []models.Candidate
	cards.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		cand, ok := c.parseCard(sel)
		if ok {
			out = append(out, cand)
		}
		return len(out) < c.maxResults
	})
	return out, nil
}

var numberRe = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)?`)

func (c *Client) parseCard(sel *goquery.Selection) (models.Candidate, bool) {
	title := strings.TrimSpace(sel.Find(`[data-testid="title"]`).First().Text())
	if title == "" {
		title = strings.TrimSpace(sel.Find("h3").First().Text())
	}
	if title == "" {
		return models.Candidate{}, false
	}

	priceText := sel.Find(`span[data-testid="price-and-discounted-price"]`).First().Text()
	if priceText == "" {
		priceText = sel.Find("span.prco-valign-middle-helper").First().Text()
	}
	price := parseNumber(priceText)
	if price <= 0 {
		return models.Candidate{}, false
	}

	currency := "RON"
	switch {
	case strings.Contains(priceText, "EUR"), strings.Contains(priceText, "€"):
		currency = "EUR"
	case strings.Contains(priceText, "USD"), strings.Contains(priceText, "$"):
		currency = "USD"
	}

	rating := parseNumber(sel.Find(`div[data-testid="review-score"]`).First().Text())

	location := strings.TrimSpace(sel.Find(`span[data-testid="address"]`).First().Text())

	href, _ := sel.Find(`a[data-testid="title-link"]`).First().Attr("href")
	if href == "" {
		href, _ = sel.Find("a").First().Attr("href")
	}
	link := href
	if link != "" && strings.HasPrefix(link, "/") {
		link = c.baseURL + link
	}

	var imageURL *string
	if src, ok := sel.Find("img").First().Attr("src"); ok && src != "" {
		imageURL = &src
	}

	return models.Candidate{
		Title:    title,
		Price:    price,
		Currency: currency,
		Rating:   rating,
		Location: location,
		URL:      link,
		ImageURL: imageURL,
		Source:   sourceName,
	}, true
}

func parseNumber(s string) float64 {
	m := numberRe.FindString(strings.ReplaceAll(s, ",", "."))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
