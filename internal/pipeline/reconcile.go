package pipeline

import (
	"strings"
	"time"

	"github.com/sells-group/startup-scraper/internal/crawl"
	"github.com/sells-group/startup-scraper/internal/extract"
	"github.com/sells-group/startup-scraper/internal/model"
)

// inputFromBlock converts a scraped block into extractor input. Founder
// social links are routed to the matching profile field by hostname.
func inputFromBlock(b crawl.Block) extract.Input {
	in := extract.Input{
		Text:          b.Text,
		URL:           b.URL,
		LogoURL:       b.LogoURL,
		LocationHints: b.LocationHints,
	}
	for _, link := range b.FounderLinks {
		fc := extract.FounderCandidate{Name: link.Name}
		switch {
		case strings.Contains(link.URL, "linkedin.com"):
			fc.LinkedInURL = link.URL
		case strings.Contains(link.URL, "twitter.com"):
			fc.TwitterURL = link.URL
		case strings.Contains(link.URL, "github.com"):
			fc.GitHubURL = link.URL
		}
		in.Founders = append(in.Founders, fc)
	}
	return in
}

// startupFromCandidate maps an extracted candidate onto the persistent
// record shape. Founders without a name are dropped since founders are
// keyed by name within a startup.
func startupFromCandidate(c extract.Candidate, source string, now time.Time) model.Startup {
	s := model.Startup{
		Name:        c.Name,
		Description: c.Description,
		URL:         c.URL,
		LogoURL:     c.LogoURL,
		Source:      source,
		Cohort:      c.Cohort,
		Status:      model.StatusActive,
		Location:    c.Location,
	}
	s.NormalizeYearFounded(now)

	for _, f := range c.Founders {
		if f.Name == "" {
			continue
		}
		s.Founders = append(s.Founders, model.Founder{
			Name:        f.Name,
			Title:       f.Title,
			RoleType:    f.RoleType,
			Bio:         f.Bio,
			Background:  f.Background,
			LinkedInURL: f.LinkedInURL,
			TwitterURL:  f.TwitterURL,
			GitHubURL:   f.GitHubURL,
		})
	}
	return s
}
