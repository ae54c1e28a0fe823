package parser

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ProductImporter/internal/scanner"
)

const priceFullXML = `<?xml version="1.0" encoding="windows-1255"?>
<Root>
  <ChainId>7290027600007</ChainId>
  <Items Count="2">
    <Item>
      <ItemCode>7290000000111</ItemCode>
      <ItemName>חלב 3% שופרסל</ItemName>
      <ManufacturerName>תנובה</ManufacturerName>
      <ItemPrice>6.90</ItemPrice>
    </Item>
    <Item>
      <ItemCode>7290000000222</ItemCode>
      <ItemName>לחם אחיד</ItemName>
      <ManufacturerName>אנג'ל</ManufacturerName>
      <ItemPrice>abc</ItemPrice>
    </Item>
  </Items>
</Root>`

const productsXML = `<Prices>
  <Products>
    <Product>
      <ItemCode>333</ItemCode>
      <ItemName>Eggs</ItemName>
      <ItemPrice>14.00</ItemPrice>
    </Product>
  </Products>
</Prices>`

func TestDecodePriceFull(t *testing.T) {
	t.Parallel()

	observations, err := decodePriceFull(bytes.NewBufferString(priceFullXML), "Shufersal")
	if err != nil {
		t.Fatalf("decodePriceFull error: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}

	first := observations[0]
	if first.Identifier != "7290000000111" || first.Label != "חלב 3% שופרסל" {
		t.Fatalf("unexpected first observation: %+v", first)
	}
	if first.Price.String() != "6.9" || first.CategoryHint != "תנובה" || first.SourceName != "Shufersal" {
		t.Fatalf("unexpected first observation fields: %+v", first)
	}
	if !observations[1].Price.IsZero() {
		t.Fatalf("expected zero price for unparsable value, got %s", observations[1].Price)
	}
}

func TestDecodePriceFullProductLayout(t *testing.T) {
	t.Parallel()

	observations, err := decodePriceFull(bytes.NewBufferString(productsXML), "Victory")
	if err != nil {
		t.Fatalf("decodePriceFull error: %v", err)
	}
	if len(observations) != 1 || observations[0].Identifier != "333" {
		t.Fatalf("unexpected observations: %+v", observations)
	}
}

func TestPriceFullScannerReadsGzipOverHTTP(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(priceFullXML)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	payload := buf.Bytes()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	sc := NewPriceFullScanner(server.Client())
	observations, err := sc.Scan(context.Background(), scanner.Request{
		SourceName: "Shufersal",
		Feeds:      []scanner.Feed{{Name: "store-001", URL: server.URL + "/PriceFull.gz"}},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}
}

func TestPriceFullScannerReadsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "PriceFull.xml")
	if err := os.WriteFile(plain, []byte(productsXML), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	sc := NewPriceFullScanner(nil)
	observations, err := sc.Scan(context.Background(), scanner.Request{
		SourceName: "Victory",
		Feeds: []scanner.Feed{
			{Name: "plain", URL: plain},
			{Name: "file-url", URL: "file://" + plain},
		},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected one observation per feed, got %d", len(observations))
	}
}

func TestPriceFullScannerNoFeeds(t *testing.T) {
	t.Parallel()

	if _, err := NewPriceFullScanner(nil).Scan(context.Background(), scanner.Request{SourceName: "X"}); err == nil {
		t.Fatal("expected error without feeds")
	}
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"8.90":     "8.9",
		" ₪12 ":    "12",
		"12,5":     "12.5",
		"1,234.50": "1234.5",
		"7,05":     "7.05",
		"1,234":    "0",
		"1,234,56": "0",
		"12,":      "0",
		"":         "0",
		"abc":      "0",
		"-3":       "-3",
	}
	for raw, want := range cases {
		if got := parsePrice(raw).String(); got != want {
			t.Fatalf("parsePrice(%q) = %s, want %s", raw, got, want)
		}
	}
}
