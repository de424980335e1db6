package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardFixture = `
<a class="_company_abc123" href="/companies/acme-robotics">
  <img src="https://cdn.example.com/logo/acme.png">
  <div><span class="company-name">Acme Robotics</span></div>
  <div><span class="company-location">Denver, CO, USA</span></div>
  <div><span>Warehouse automation for mid-size logistics.</span></div>
  <div>
    <a href="https://linkedin.com/in/dana-miles">Dana Miles</a>
  </div>
</a>`

func fixtureElement(t *testing.T, html string) Element {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return NewElement(doc.Find("a").First())
}

func TestBuildBlock(t *testing.T) {
	el := fixtureElement(t, cardFixture)
	resolve := func(s string) string {
		if strings.HasPrefix(s, "/") {
			return "https://directory.example.com" + s
		}
		return s
	}

	b := buildBlock(el, "Acme Robotics\nDenver, CO, USA", resolve)

	assert.Equal(t, "https://directory.example.com/companies/acme-robotics", b.URL)
	assert.Equal(t, "https://cdn.example.com/logo/acme.png", b.LogoURL)
	assert.Equal(t, []string{"Denver, CO, USA"}, b.LocationHints)
	require.Len(t, b.FounderLinks, 1)
	assert.Equal(t, "Dana Miles", b.FounderLinks[0].Name)
	assert.Equal(t, "https://linkedin.com/in/dana-miles", b.FounderLinks[0].URL)
}

func TestCardText_OneLinePerLeaf(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cardFixture))
	require.NoError(t, err)

	text := cardText(doc.Find("a").First())
	lines := strings.Split(text, "\n")
	assert.Equal(t, []string{
		"Acme Robotics",
		"Denver, CO, USA",
		"Warehouse automation for mid-size logistics.",
		"Dana Miles",
	}, lines)
}

func TestNewCollyDriver_RequiresBaseURL(t *testing.T) {
	_, err := NewCollyDriver(CollyConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")
}

func TestCollyDriver_NavigateAndBlocks(t *testing.T) {
	var gotBatch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBatch = r.URL.Query().Get("batch")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
			<a href="/companies/acme-robotics"><div>Acme Robotics</div><div>Denver, CO</div></a>
			<a href="/companies/ochre-bio"><div>Ochre Bio</div><div>Oxford, UK</div></a>
		</body></html>`))
	}))
	defer srv.Close()

	d, err := NewCollyDriver(CollyConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 100,
		Delay:             time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Navigate(ctx, Filter{Cohort: "W24"}))
	assert.Equal(t, "W24", gotBatch)

	blocks, err := d.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Acme Robotics\nDenver, CO", blocks[0].Text)
	assert.Equal(t, srv.URL+"/companies/acme-robotics", blocks[0].URL)
	assert.Equal(t, "Ochre Bio\nOxford, UK", blocks[1].Text)
}

func TestCollyDriver_LimitCapsBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
			<a href="/companies/one"><div>One</div></a>
			<a href="/companies/two"><div>Two</div></a>
			<a href="/companies/three"><div>Three</div></a>
		</body></html>`))
	}))
	defer srv.Close()

	d, err := NewCollyDriver(CollyConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 100,
		Delay:             time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, d.Navigate(context.Background(), Filter{Limit: 1}))
	blocks, err := d.Blocks(context.Background())
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestCollyDriver_NavigateResetsBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/companies/one"><div>One</div></a></body></html>`))
	}))
	defer srv.Close()

	d, err := NewCollyDriver(CollyConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 100,
		Delay:             time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Navigate(ctx, Filter{}))
	require.NoError(t, d.Navigate(ctx, Filter{}))

	blocks, err := d.Blocks(ctx)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestCollyDriver_ServerErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, err := NewCollyDriver(CollyConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 100,
		Delay:             time.Millisecond,
	})
	require.NoError(t, err)

	err = d.Navigate(context.Background(), Filter{})
	require.Error(t, err)
}
