package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// ShoppingListFile is a rendered shopping list ready for download.
type ShoppingListFile struct {
	Content     []byte
	Filename    string
	ContentType string
}

// FileGenerator renders an aggregated shopping list into a file format.
type FileGenerator interface {
	Generate(ingredients []AggregatedIngredient) (*ShoppingListFile, error)
}

// TextFileGenerator renders a plain-text shopping list.
type TextFileGenerator struct{}

func (TextFileGenerator) Generate(ingredients []AggregatedIngredient) (*ShoppingListFile, error) {
	var buf bytes.Buffer
	buf.WriteString("Shopping list:\n\n")
	for _, ing := range ingredients {
		fmt.Fprintf(&buf, "%s - %s %s\n", ing.Name, formatAmount(ing.TotalAmount), ing.MeasurementUnit)
	}
	return &ShoppingListFile{
		Content:     buf.Bytes(),
		Filename:    "shopping_cart.txt",
		ContentType: "text/plain; charset=utf-8",
	}, nil
}

// CSVFileGenerator renders the shopping list as CSV.
type CSVFileGenerator struct{}

func (CSVFileGenerator) Generate(ingredients []AggregatedIngredient) (*ShoppingListFile, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Ingredient", "Amount", "Unit"}); err != nil {
		return nil, err
	}
	for _, ing := range ingredients {
		if err := w.Write([]string{ing.Name, formatAmount(ing.TotalAmount), ing.MeasurementUnit}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &ShoppingListFile{
		Content:     buf.Bytes(),
		Filename:    "shopping_cart.csv",
		ContentType: "text/csv; charset=utf-8",
	}, nil
}

var fileGenerators = map[string]FileGenerator{
	"txt": TextFileGenerator{},
	"csv": CSVFileGenerator{},
}

// NewFileGenerator returns the generator for the given format key.
func NewFileGenerator(format string) (FileGenerator, error) {
	gen, ok := fileGenerators[format]
	if !ok {
		return nil, newValidationError("format", fmt.Sprintf("unknown format: %s", format))
	}
	return gen, nil
}

// formatAmount prints amounts without a trailing ".0" for whole values.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
