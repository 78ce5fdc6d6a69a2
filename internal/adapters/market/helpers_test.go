package market

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func goqueryDocument(page string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}
