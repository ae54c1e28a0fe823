package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ProductImporter/internal/domain"
	"ProductImporter/internal/scanner"
)

const (
	optRow       = "row"
	optCode      = "code"
	optCodeAttr  = "codeAttr"
	optName      = "name"
	optPrice     = "price"
	optCategory  = "category"
	optPageParam = "pageParam"
	optMaxPages  = "maxPages"

	defaultRowSelector = "tr.product"
)

// HTMLPriceScanner crawls chain price-list pages and extracts one observation per row.
// Selectors come from the chain options; pagination is enabled by the pageParam option.
type HTMLPriceScanner struct {
	client *http.Client
}

// NewHTMLPriceScanner wires an HTTP client; nil picks a default with a timeout.
func NewHTMLPriceScanner(client *http.Client) *HTMLPriceScanner {
	return &HTMLPriceScanner{client: defaultClient(client)}
}

// Name identifies the strategy inside the registry.
func (h *HTMLPriceScanner) Name() string {
	return "html"
}

type rowSelectors struct {
	row, code, codeAttr, name, price, category string
}

func selectorsFrom(opts map[string]string) rowSelectors {
	sel := rowSelectors{
		row:      opts[optRow],
		code:     opts[optCode],
		codeAttr: opts[optCodeAttr],
		name:     opts[optName],
		price:    opts[optPrice],
		category: opts[optCategory],
	}
	if sel.row == "" {
		sel.row = defaultRowSelector
	}
	if sel.code == "" && sel.codeAttr == "" {
		sel.code = ".code"
	}
	if sel.name == "" {
		sel.name = ".name"
	}
	if sel.price == "" {
		sel.price = ".price"
	}
	return sel
}

// Scan walks every feed page by page until a page yields no rows or maxPages is reached.
func (h *HTMLPriceScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawObservation, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for chain %s", req.SourceName)
	}

	sel := selectorsFrom(req.Options)
	pageParam := req.Options[optPageParam]
	maxPages := 1
	if pageParam != "" {
		maxPages = 50
		if raw := req.Options[optMaxPages]; raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("chain %s: invalid %s %q", req.SourceName, optMaxPages, raw)
			}
			maxPages = n
		}
	}

	var results []domain.RawObservation
	for _, feed := range req.Feeds {
		for page := 1; page <= maxPages; page++ {
			pageURL := feed.URL
			if pageParam != "" {
				var err error
				pageURL, err = buildPageURL(feed.URL, pageParam, page)
				if err != nil {
					return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
				}
			}

			doc, err := h.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
			}

			rows := extractRows(doc, sel, req.SourceName)
			results = append(results, rows...)
			if len(rows) == 0 {
				break
			}
		}
	}

	return results, nil
}

func (h *HTMLPriceScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := fetchHTTP(ctx, h.client, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractRows(doc *goquery.Document, sel rowSelectors, source string) []domain.RawObservation {
	var collected []domain.RawObservation
	doc.Find(sel.row).Each(func(_ int, row *goquery.Selection) {
		collected = append(collected, parseRow(row, sel, source))
	})
	return collected
}

func parseRow(row *goquery.Selection, sel rowSelectors, source string) domain.RawObservation {
	var code string
	if sel.codeAttr != "" {
		target := row
		if sel.code != "" {
			target = row.Find(sel.code).First()
		}
		code, _ = target.Attr(sel.codeAttr)
	} else {
		code = row.Find(sel.code).First().Text()
	}

	var category string
	if sel.category != "" {
		category = strings.TrimSpace(row.Find(sel.category).First().Text())
	}

	return domain.RawObservation{
		Identifier:   strings.TrimSpace(code),
		Label:        strings.Join(strings.Fields(row.Find(sel.name).First().Text()), " "),
		Price:        parsePrice(row.Find(sel.price).First().Text()),
		CategoryHint: category,
		SourceName:   source,
	}
}

func buildPageURL(base, param string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set(param, strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
