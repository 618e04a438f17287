package opgg

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yourusername/draftforme-backend/internal/models"
)

const (
	maxCounters  = 3
	maxCoreItems = 6
	maxNameLen   = 30
)

var (
	ratePattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	rankPattern   = regexp.MustCompile(`^\s*(\d+)`)
	targetPattern = regexp.MustCompile(`target_champion=(\w+)`)
	itemPattern   = regexp.MustCompile(`/item/(\d+)\.`)
	skillPattern  = regexp.MustCompile(`([QWER])\s*>\s*([QWER])\s*>\s*([QWER])`)
)

// ParseHTML converts raw HTML to a goquery Document.
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseTierList extracts one row per champion from the champions table.
// Rows without a build link are headers or ads and are skipped; duplicate
// names keep their first occurrence.
func ParseTierList(doc *goquery.Document, role models.Role) []models.ChampionStat {
	var stats []models.ChampionStat
	seen := make(map[string]bool)

	doc.Find("table tr").Each(func(i int, tr *goquery.Selection) {
		link := tr.Find("a[href*='/champions/'][href*='/build']").First()
		if link.Length() == 0 {
			return
		}

		name := strings.TrimSpace(link.Text())
		if name == "" {
			name, _ = link.Find("img[alt]").Attr("alt")
			name = strings.TrimSpace(name)
		}
		if name == "" || len(name) > maxNameLen || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true

		href, _ := link.Attr("href")
		rowText := rowText(tr)

		stat := models.ChampionStat{
			Name:     name,
			Slug:     slugFromHref(href),
			Role:     role,
			Rank:     len(stats) + 1,
			Counters: parseCounters(tr),
		}
		if m := rankPattern.FindStringSubmatch(rowText); m != nil {
			if rank, err := strconv.Atoi(m[1]); err == nil && rank > 0 {
				stat.Rank = rank
			}
		}

		rates := ratePattern.FindAllStringSubmatch(rowText, 3)
		for j, m := range rates {
			v, _ := strconv.ParseFloat(m[1], 64)
			switch j {
			case 0:
				stat.WinRate = v
			case 1:
				stat.PickRate = v
			case 2:
				stat.BanRate = v
			}
		}
		if stat.Slug == "" {
			stat.Slug = models.ChampionKey(name)
		}

		stats = append(stats, stat)
	})

	return stats
}

// ParseBuild extracts the core items and skill priority of a build page.
func ParseBuild(doc *goquery.Document, slug string, role models.Role) *models.Build {
	build := &models.Build{
		Champion:  slug,
		Role:      role,
		CoreItems: []models.BuildItem{},
	}

	seen := make(map[string]bool)
	doc.Find("img[src*='/item/']").EachWithBreak(func(i int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		m := itemPattern.FindStringSubmatch(src)
		if m == nil || seen[m[1]] {
			return true
		}
		seen[m[1]] = true

		name := strings.TrimSpace(img.AttrOr("alt", ""))
		if name == "" {
			name = m[1]
		}
		build.CoreItems = append(build.CoreItems, models.BuildItem{
			ID:    m[1],
			Name:  name,
			Image: strings.SplitN(src, "?", 2)[0],
		})
		return len(build.CoreItems) < maxCoreItems
	})

	doc.Find("[class*='skill'], [class*='Skill']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if m := skillPattern.FindStringSubmatch(s.Text()); m != nil {
			build.SkillOrder = m[1] + " > " + m[2] + " > " + m[3]
			return false
		}
		return true
	})
	if build.SkillOrder == "" {
		if m := skillPattern.FindStringSubmatch(doc.Text()); m != nil {
			build.SkillOrder = m[1] + " > " + m[2] + " > " + m[3]
		}
	}

	return build
}

func rowText(tr *goquery.Selection) string {
	var parts []string
	tr.Find("td").Each(func(i int, td *goquery.Selection) {
		if t := strings.TrimSpace(td.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(tr.Text())
	}
	return strings.Join(parts, " | ")
}

// slugFromHref returns the path segment after "champions".
func slugFromHref(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	parts := strings.Split(href, "/")
	for i, p := range parts {
		if p == "champions" && i+1 < len(parts) {
			return strings.ToLower(parts[i+1])
		}
	}
	return ""
}

func parseCounters(tr *goquery.Selection) []string {
	counters := []string{}
	links := tr.Find("a[href*='/counters']")

	links.Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := targetPattern.FindStringSubmatch(href); m != nil {
			counters = append(counters, m[1])
		}
	})
	if len(counters) == 0 {
		links.Find("img[alt]").Each(func(i int, img *goquery.Selection) {
			if alt := strings.TrimSpace(img.AttrOr("alt", "")); alt != "" && len(alt) < 25 {
				counters = append(counters, alt)
			}
		})
	}

	if len(counters) > maxCounters {
		counters = counters[:maxCounters]
	}
	return counters
}
