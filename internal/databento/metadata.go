package databento

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type DatasetRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MetadataDatasetRange reports the date range a dataset covers. Used to
// verify access before spending on a fetch.
func (c *Client) MetadataDatasetRange(ctx context.Context, dataset string) (DatasetRange, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("dataset", dataset).
		Get("/v0/metadata.get_dataset_range")
	if err != nil {
		return DatasetRange{}, fmt.Errorf("get_dataset_range: %w", err)
	}
	if res.IsError() {
		return DatasetRange{}, fmt.Errorf("get_dataset_range: %s: %s", res.Status(), truncate(res.String(), 200))
	}

	var out DatasetRange
	err = json.Unmarshal(res.Body(), &out)
	if err != nil {
		return DatasetRange{}, fmt.Errorf("get_dataset_range: decode: %w", err)
	}
	return out, nil
}

// MetadataGetCost estimates the dollar cost of a get_range call without
// fetching any data. The response body is a bare JSON number.
func (c *Client) MetadataGetCost(ctx context.Context, p GetRangeParams) (float64, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(p.query()).
		Get("/v0/metadata.get_cost")
	if err != nil {
		return 0, fmt.Errorf("get_cost: %w", err)
	}
	if res.IsError() {
		return 0, fmt.Errorf("get_cost: %s: %s", res.Status(), truncate(res.String(), 200))
	}

	cost, err := strconv.ParseFloat(strings.TrimSpace(res.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("get_cost: decode %q: %w", res.String(), err)
	}
	return cost, nil
}
