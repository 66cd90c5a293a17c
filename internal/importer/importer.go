package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter loads catalog rows and inserts or updates products. Rows with an
// id are upserted in place; rows without one create a new product.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

type csvRow struct {
	line      int
	ID        string
	Name      string
	Desc      string
	Price     string
	Category  string
	Stock     string
	ImageURLs []string
}

// Run parses CSV rows and upserts one product per named row. A row with no
// name only contributes images to the product above it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"name", "price", "category"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	var (
		current  *csvRow
		imported int
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.Name != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p, err := row.product()
	if err != nil {
		return fmt.Errorf("line %d: %w", row.line, err)
	}
	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("line %d: upsert product %q: %w", row.line, row.Name, err)
	}
	return nil
}

func (row *csvRow) product() (domain.Product, error) {
	if row.ID != "" {
		if _, err := uuid.Parse(row.ID); err != nil {
			return domain.Product{}, fmt.Errorf("invalid id %q", row.ID)
		}
	}
	if row.Category == "" {
		return domain.Product{}, fmt.Errorf("category required for %q", row.Name)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() || price.Exponent() < -2 {
		return domain.Product{}, fmt.Errorf("invalid price %q for %q", row.Price, row.Name)
	}
	stock := 0
	if row.Stock != "" {
		stock, err = strconv.Atoi(row.Stock)
		if err != nil || stock < 0 {
			return domain.Product{}, fmt.Errorf("invalid stock %q for %q", row.Stock, row.Name)
		}
	}
	images := row.ImageURLs
	if images == nil {
		images = []string{}
	}
	return domain.Product{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Desc,
		Price:       price,
		Category:    row.Category,
		Stock:       stock,
		Images:      images,
	}, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	name := pick(record, index, "name")
	images := splitImages(pick(record, index, "images"))

	if name == "" && len(images) == 0 {
		return nil
	}

	return &csvRow{
		ID:        pick(record, index, "id"),
		Name:      name,
		Desc:      pick(record, index, "description"),
		Price:     pick(record, index, "price"),
		Category:  pick(record, index, "category"),
		Stock:     pick(record, index, "stock"),
		ImageURLs: images,
	}
}

// splitImages accepts several image URLs in one cell separated by ';'.
func splitImages(cell string) []string {
	var out []string
	for _, part := range strings.Split(cell, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
