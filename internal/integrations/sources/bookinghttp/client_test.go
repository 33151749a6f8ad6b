package bookinghttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/StayScout/internal/models"
	"github.com/stretchr/testify/require"
)

const searchPage = `
<html><body>
<div data-testid="property-card">
  <h3 data-testid="title">Hotel Central</h3>
  <span data-testid="price-and-discounted-price">450 RON</span>
  <div data-testid="review-score">8,7 Foarte bine</div>
  <span data-testid="address">București, Sector 1</span>
  <a data-testid="title-link" href="/hotel/ro/central.html">link</a>
  <img src="https://cf.example/central.jpg"/>
</div>
<div data-testid="property-card">
  <h3 data-testid="title">Apart Herastrau</h3>
  <span data-testid="price-and-discounted-price">€ 120 EUR</span>
  <div data-testid="review-score">9,1</div>
  <span data-testid="address">București, Sector 2</span>
  <a data-testid="title-link" href="/hotel/ro/herastrau.html">link</a>
</div>
<div data-testid="property-card">
  <h3 data-testid="title">No Price Hostel</h3>
  <span data-testid="address">București</span>
</div>
</body></html>`

func testCriteria() models.SearchCriteria {
	return models.SearchCriteria{
		Destination: "București, România",
		CheckIn:     time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
		CheckOut:    time.Date(2026, 9, 22, 0, 0, 0, 0, time.UTC),
		Guests:      2,
	}
}

func TestClient_Fetch_ParsesPropertyCards(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.Fetch(context.Background(), testCriteria())
	require.NoError(t, err)

	// The card without a price is dropped.
	require.Len(t, got, 2)

	require.Equal(t, "Hotel Central", got[0].Title)
	require.Equal(t, 450.0, got[0].Price)
	require.Equal(t, "RON", got[0].Currency)
	require.InDelta(t, 8.7, got[0].Rating, 0.001)
	require.Equal(t, "București, Sector 1", got[0].Location)
	require.Equal(t, srv.URL+"/hotel/ro/central.html", got[0].URL)
	require.NotNil(t, got[0].ImageURL)
	require.Equal(t, "booking", got[0].Source)

	require.Equal(t, "EUR", got[1].Currency)
	require.Equal(t, 120.0, got[1].Price)
	require.Nil(t, got[1].ImageURL)

	require.Contains(t, gotURL, "checkin=2026-09-20")
	require.Contains(t, gotURL, "checkout=2026-09-22")
	require.Contains(t, gotURL, "group_adults=2")
}

func TestClient_Fetch_MaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	c := New(srv.URL).WithMaxResults(1)
	got, err := c.Fetch(context.Background(), testCriteria())
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestClient_Fetch_HTTPError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Fetch(context.Background(), testCriteria())
	require.Error(t, err)
	require.Greater(t, calls, 1) // retried before giving up
}
