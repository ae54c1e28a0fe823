package parser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ProductImporter/internal/domain"
	"ProductImporter/internal/scanner"
)

// PriceFullScanner reads the PriceFull XML files chains publish under the price
// transparency regulation. Both Root/Items/Item and Products/Product layouts are accepted.
type PriceFullScanner struct {
	client *http.Client
}

// NewPriceFullScanner wires an HTTP client; nil picks a default with a timeout.
func NewPriceFullScanner(client *http.Client) *PriceFullScanner {
	return &PriceFullScanner{client: defaultClient(client)}
}

// Name identifies the strategy inside the registry.
func (p *PriceFullScanner) Name() string {
	return "pricefull-xml"
}

type priceFullItem struct {
	ItemCode         string `xml:"ItemCode"`
	ItemName         string `xml:"ItemName"`
	ItemPrice        string `xml:"ItemPrice"`
	ManufacturerName string `xml:"ManufacturerName"`
}

// Scan decodes every feed of the chain.
func (p *PriceFullScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawObservation, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for chain %s", req.SourceName)
	}

	var results []domain.RawObservation
	for _, feed := range req.Feeds {
		body, err := openFeed(ctx, p.client, feed.URL)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
		}
		items, err := decodePriceFull(body, req.SourceName)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
		}
		results = append(results, items...)
	}
	return results, nil
}

func decodePriceFull(r io.Reader, source string) ([]domain.RawObservation, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = passthroughCharset

	var results []domain.RawObservation
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !isItemElement(start.Name.Local) {
			continue
		}

		var item priceFullItem
		if err := decoder.DecodeElement(&item, &start); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		results = append(results, domain.RawObservation{
			Identifier:   strings.TrimSpace(item.ItemCode),
			Label:        strings.TrimSpace(item.ItemName),
			Price:        parsePrice(item.ItemPrice),
			CategoryHint: strings.TrimSpace(item.ManufacturerName),
			SourceName:   source,
		})
	}
	return results, nil
}

func isItemElement(name string) bool {
	return strings.EqualFold(name, "Item") || strings.EqualFold(name, "Product")
}

// Some chains declare windows-1255 or similar while actually shipping UTF-8.
func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}
