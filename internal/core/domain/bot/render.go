package bot

import (
	"fmt"
	"stockrelay/internal/core/domain"
	"strings"
)

const productTemplate = `Item: %s
Current stock: %d
Store: %s
Restock Date: %s
Forecast:
`

const forecastTemplate = `-----
	Probability: %s
	Date: %s
	Stock: %d
`

const productSeparator = "\n---------\n\n"

const dateLength = len("2006-01-02")

// RenderStatus formats one block per product, each followed by its own forecast entries.
func RenderStatus(products []domain.Product) string {
	var sb strings.Builder

	for _, product := range products {
		fmt.Fprintf(&sb, productTemplate,
			product.ProductID,
			product.Availability.Stock,
			product.Store.Name,
			truncateDate(product.Availability.RestockDate))

		for _, forecast := range product.Availability.Forecast {
			fmt.Fprintf(&sb, forecastTemplate, forecast.Probability, truncateDate(forecast.Date), forecast.Stock)
		}

		sb.WriteString(productSeparator)
	}

	return sb.String()
}

func truncateDate(timestamp string) string {
	if len(timestamp) <= dateLength {
		return timestamp
	}

	return timestamp[:dateLength]
}
