package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ProductImporter/internal/domain"
	"ProductImporter/internal/scanner"
)

const optSourceFromFolder = "sourceFromFolder"

// CSVScanner walks directories of already-converted price dumps. Each feed URL is a
// directory; every *.csv below it is read with an ItemCode,ItemName,ItemPrice,ManufacturerName header.
// With sourceFromFolder set, one dump tree may hold several chains, one top-level folder each.
type CSVScanner struct {
	logger *slog.Logger
}

// NewCSVScanner builds the scanner; unreadable files are logged and skipped.
func NewCSVScanner(logger *slog.Logger) *CSVScanner {
	return &CSVScanner{logger: logger}
}

// Name identifies the strategy inside the registry.
func (c *CSVScanner) Name() string {
	return "csv"
}

// Scan reads every CSV file below each feed directory in lexical path order.
func (c *CSVScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawObservation, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for chain %s", req.SourceName)
	}

	fromFolder := false
	if raw := req.Options[optSourceFromFolder]; raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("chain %s: invalid %s %q", req.SourceName, optSourceFromFolder, raw)
		}
		fromFolder = v
	}

	var results []domain.RawObservation
	for _, feed := range req.Feeds {
		root := strings.TrimPrefix(feed.URL, "file://")
		files, err := csvFiles(root)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
		}

		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			source := req.SourceName
			if fromFolder || source == "" {
				if derived := folderSource(root, path); derived != "" {
					source = derived
				}
			}
			rows, err := readCSV(path, source)
			if err != nil {
				c.warn("skip unreadable csv", "path", path, "error", err)
				continue
			}
			results = append(results, rows...)
		}
	}
	return results, nil
}

func csvFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func readCSV(path, source string) ([]domain.RawObservation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, col := range header {
		index[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}
	if _, ok := index["ItemCode"]; !ok {
		return nil, errors.New("missing ItemCode column")
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var results []domain.RawObservation
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		results = append(results, domain.RawObservation{
			Identifier:   field(record, "ItemCode"),
			Label:        field(record, "ItemName"),
			Price:        parsePrice(field(record, "ItemPrice")),
			CategoryHint: field(record, "ManufacturerName"),
			SourceName:   source,
		})
	}
	return results, nil
}

// folderSource derives a supplier name from the first directory under root,
// e.g. rami_levy/store1/prices.csv becomes "Rami Levy". Files directly under root yield "".
func folderSource(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(parts[0], "_", " "))
}

func (c *CSVScanner) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
