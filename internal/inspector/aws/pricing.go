package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"cloudtrim/internal/inspector"
)

var _ inspector.Pricer = (*Session)(nil)

// Price looks up the on-demand unit price for a resource through the Pricing
// API. A nil price with a nil error means the product could not be matched;
// callers leave the finding unpriced.
func (s *Session) Price(ctx context.Context, q inspector.PriceQuery) (*inspector.Price, error) {
	location, ok := regionLocations[q.Region]
	if !ok {
		return nil, nil
	}

	filters := []pricingtypes.Filter{
		{
			Type:  pricingtypes.FilterTypeTermMatch,
			Field: aws.String("location"),
			Value: aws.String(location),
		},
	}
	for field, value := range q.Attributes {
		filters = append(filters, pricingtypes.Filter{
			Type:  pricingtypes.FilterTypeTermMatch,
			Field: aws.String(field),
			Value: aws.String(value),
		})
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	out, err := s.pricing.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String(q.Service),
		Filters:     filters,
		MaxResults:  aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("get products for %s: %w", q.Service, err)
	}
	if len(out.PriceList) == 0 {
		return nil, nil
	}

	price, err := parsePriceDocument(out.PriceList[0])
	if err != nil {
		return nil, fmt.Errorf("parse price document: %w", err)
	}
	return price, nil
}

// priceDocument mirrors the slice of the Pricing API product JSON we need:
// terms.OnDemand.<sku>.priceDimensions.<dim>.{pricePerUnit.USD, unit}.
type priceDocument struct {
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				Unit         string `json:"unit"`
				PricePerUnit struct {
					USD string `json:"USD"`
				} `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

func parsePriceDocument(doc string) (*inspector.Price, error) {
	var parsed priceDocument
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, err
	}

	for _, term := range parsed.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			amount, err := strconv.ParseFloat(dim.PricePerUnit.USD, 64)
			if err != nil {
				return nil, fmt.Errorf("parse USD amount %q: %w", dim.PricePerUnit.USD, err)
			}
			return &inspector.Price{Amount: amount, Unit: dim.Unit}, nil
		}
	}
	return nil, nil
}
