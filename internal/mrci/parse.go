package mrci

import (
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"seasonality-backend/internal/store"

	"github.com/PuerkitoBio/goquery"
)

// NameToRoot maps the section headers on the OHLC pages to database root
// symbols. Sections missing from this table are counted, not inserted.
var NameToRoot = map[string]string{
	"Soybeans(CBOT)":      "S",
	"Soybean Meal(CBOT)":  "SM",
	"Soybean Oil(CBOT)":   "BO",
	"Corn(CBOT)":          "C",
	"Wheat(CBOT)":         "W",
	"Wheat(KCBT)":         "KW",
	"Wheat(MGE)":          "MW",
	"Oats(CBOT)":          "O",
	"Rough Rice(CBOT)":    "RR",
	"Live Cattle(CME)":    "LC",
	"Feeder Cattle(CME)":  "FC",
	"Lean Hogs(CME)":      "LH",
	"Pork Bellies(CME)":   "PB",
	"Class III Milk(CME)": "DA",
	"Cocoa(ICE)":          "CC",
	`Coffee "C"(ICE)`:     "KC",
	"Sugar #11(ICE)":      "SB",
	"Cotton(ICE)":         "CT",
	"Orange Juice(ICE)":   "OJ",
	"Canola(WCE)":         "RS",
	"London Cocoa(LCE)":   "LCC",
	"London Sugar(LCE)":   "LSU",
}

type ParseStats struct {
	HadTable        bool
	LinesScanned    int
	RowsParsed      int
	RowsUnknownRoot int
	RowsBadFormat   int
	UnknownSections []string
}

// ParseDay extracts contract price rows from one OHLC page. pageDate is
// the date the page was fetched for and backs any row whose own date cell
// is unparsable. known filters roots to assets present in the database.
func ParseDay(html io.Reader, pageDate time.Time, known map[string]bool) ([]store.ContractPrice, ParseStats, error) {
	var rows []store.ContractPrice
	stats := ParseStats{}

	doc, err := goquery.NewDocumentFromReader(html)
	if err != nil {
		return nil, stats, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table.strat").First()
	stats.HadTable = table.Length() > 0
	if !stats.HadTable {
		return nil, stats, nil
	}

	unknownSections := map[string]bool{}
	currentRoot := ""

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		note := tr.Find("th.note1")
		if note.Length() > 0 {
			name := strings.Join(strings.Fields(note.Text()), " ")
			currentRoot = NameToRoot[name]
			if currentRoot == "" {
				unknownSections[name] = true
			}
			return
		}

		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}

		first := strings.ToLower(strings.TrimSpace(tds.Eq(0).Text()))
		if strings.HasPrefix(first, "total volume") {
			return
		}
		if tds.Length() < 8 {
			return
		}

		stats.LinesScanned++

		if currentRoot == "" || !known[currentRoot] {
			stats.RowsUnknownRoot++
			return
		}

		contract := strings.TrimSpace(tds.Eq(0).Text())
		rowDate, ok := parseYYMMDD(strings.TrimSpace(tds.Eq(1).Text()))
		if !ok {
			rowDate = store.DateOf(pageDate)
		}

		open, err1 := toFloat(tds.Eq(2).Text())
		high, err2 := toFloat(tds.Eq(3).Text())
		low, err3 := toFloat(tds.Eq(4).Text())
		clos, err4 := toFloat(tds.Eq(5).Text())
		volume, err5 := toInt(tds.Eq(7).Text())

		var openInterest sql.NullInt64
		var err6 error
		if tds.Length() > 8 {
			openInterest, err6 = toInt(tds.Eq(8).Text())
		}

		for _, err := range []error{err1, err2, err3, err4, err5, err6} {
			if err != nil {
				stats.RowsBadFormat++
				return
			}
		}

		rows = append(rows, store.ContractPrice{
			Symbol:       currentRoot,
			TradeDate:    rowDate,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        clos,
			Volume:       volume,
			OpenInterest: openInterest,
			Contract:     contract,
		})
		stats.RowsParsed++
	})

	for name := range unknownSections {
		stats.UnknownSections = append(stats.UnknownSections, name)
	}
	sort.Strings(stats.UnknownSections)

	return rows, stats, nil
}

func cleanCell(raw string) string {
	s := strings.ReplaceAll(raw, ",", "")
	// goquery decodes &nbsp; into U+00A0
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimSpace(s)
}

// blank markers the site uses for cells with no value
func isEmptyCell(s string) bool {
	return s == "" || s == "-" || s == "&nbsp;"
}

func toFloat(raw string) (sql.NullFloat64, error) {
	s := cleanCell(raw)
	if isEmptyCell(s) {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}

func toInt(raw string) (sql.NullInt64, error) {
	s := cleanCell(raw)
	if isEmptyCell(s) {
		return sql.NullInt64{}, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: v, Valid: true}, nil
}

var yymmddRegex = regexp.MustCompile(`^\d{6}$`)

// parseYYMMDD reads the 6-digit date cells, pivoting 2-digit years at 1970.
func parseYYMMDD(s string) (time.Time, bool) {
	if !yymmddRegex.MatchString(s) {
		return time.Time{}, false
	}

	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, false
	}
	year := 2000 + yy
	if yy >= 70 {
		year = 1900 + yy
	}

	t, err := time.Parse("20060102", fmt.Sprintf("%04d%s", year, s[2:]))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
