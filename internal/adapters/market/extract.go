package market

import (
	"bytes"
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bnema/truck-load-watch/internal/domain"
)

// Offer row column layout.
const (
	colExternalID = 0
	colOrigin     = 1
	colDest       = 2
	colConsignee  = 4
	colWeight     = 5
	colShipMode   = 6
	colAction     = 8

	minOfferCells = 9

	originDelimiter = " P:"
	destDelimiter   = " D:"
)

var weightPattern = regexp.MustCompile(`(\d+)\s*lbs`)

// Extractor turns the offers page into typed records. Every assumption
// about the page markup lives in this file.
type Extractor struct{}

func NewExtractor() Extractor {
	return Extractor{}
}

func (Extractor) Extract(document []byte) (domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return domain.Listing{}, fmt.Errorf("%w: parse html: %w", domain.ErrParse, err)
	}

	forms := doc.Find("form")
	if forms.Length() == 0 {
		return domain.Listing{}, fmt.Errorf("%w: page has no form", domain.ErrParse)
	}

	listing := domain.Listing{Fields: hiddenFields(forms)}
	for i, cells := range dataRows(doc) {
		offer, err := parseOffer(cells)
		if err != nil {
			return domain.Listing{}, fmt.Errorf("%w: row %d: %w", domain.ErrParse, i, err)
		}
		listing.Offers = append(listing.Offers, offer)
	}

	slices.SortStableFunc(listing.Offers, func(a, b domain.LoadOffer) int {
		return cmp.Compare(a.WeightLbs, b.WeightLbs)
	})
	return listing, nil
}

func hiddenFields(forms *goquery.Selection) domain.HiddenFields {
	fields := domain.NewHiddenFields()
	forms.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, hasName := input.Attr("name")
		value, hasValue := input.Attr("value")
		if !hasName || name == "" || !hasValue {
			return
		}
		switch value {
		case "true":
			fields.Set(name, domain.BoolValue(true))
		case "false":
			fields.Set(name, domain.BoolValue(false))
		default:
			fields.Set(name, domain.TextValue(value))
		}
	})
	return fields
}

func dataRows(doc *goquery.Document) [][]string {
	var rows [][]string
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Children().Each(func(_ int, cell *goquery.Selection) {
			if !isDataCell(cell) {
				return
			}
			if token, ok := acceptToken(cell); ok {
				cells = append(cells, token)
				return
			}
			if text := strings.Join(strings.Fields(cell.Text()), " "); text != "" {
				cells = append(cells, text)
			}
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}

func isDataCell(cell *goquery.Selection) bool {
	class, ok := cell.Attr("class")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(class) {
		if strings.Contains(token, "data") {
			return true
		}
	}
	return false
}

func acceptToken(cell *goquery.Selection) (string, bool) {
	input := cell.Find("input").First()
	if input.Length() == 0 {
		return "", false
	}
	value, _ := input.Attr("value")
	name, _ := input.Attr("name")
	if value != domain.AcceptActionValue || name == "" {
		return "", false
	}
	return name, true
}

func parseOffer(cells []string) (domain.LoadOffer, error) {
	if len(cells) < minOfferCells {
		return domain.LoadOffer{}, fmt.Errorf("expected at least %d cells, got %d", minOfferCells, len(cells))
	}

	originLoc, originAt, ok := strings.Cut(cells[colOrigin], originDelimiter)
	if !ok {
		return domain.LoadOffer{}, fmt.Errorf("origin %q has no %q delimiter", cells[colOrigin], originDelimiter)
	}
	destLoc, destAt, ok := strings.Cut(cells[colDest], destDelimiter)
	if !ok {
		return domain.LoadOffer{}, fmt.Errorf("destination %q has no %q delimiter", cells[colDest], destDelimiter)
	}

	weight, err := parseWeight(cells[colWeight])
	if err != nil {
		return domain.LoadOffer{}, err
	}

	offer := domain.LoadOffer{
		ExternalID:        strings.TrimSpace(cells[colExternalID]),
		OriginLocation:    strings.TrimSpace(originLoc),
		OriginDateTime:    strings.TrimSpace(originAt),
		DestLocation:      strings.TrimSpace(destLoc),
		DestDateTime:      strings.TrimSpace(destAt),
		Consignee:         cells[colConsignee],
		WeightLbs:         weight,
		ShipMode:          cells[colShipMode],
		AcceptActionToken: strings.TrimSpace(cells[colAction]),
	}
	if offer.ExternalID == "" {
		return domain.LoadOffer{}, fmt.Errorf("empty external id")
	}
	if offer.AcceptActionToken == "" {
		return domain.LoadOffer{}, fmt.Errorf("offer %s has no accept action", offer.ExternalID)
	}
	return offer, nil
}

func parseWeight(text string) (int, error) {
	match := weightPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, fmt.Errorf("weight %q does not match %s", text, weightPattern)
	}
	weight, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("weight %q: %w", text, err)
	}
	return weight, nil
}
