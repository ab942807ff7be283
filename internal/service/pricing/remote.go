package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
)

// RemoteQuoter calls an external pricing service. The service owns the fare
// formula; we only consume {amount, version}.
type RemoteQuoter struct {
	baseURL string
	client  *http.Client
}

func NewRemoteQuoter(baseURL string) *RemoteQuoter {
	return &RemoteQuoter{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (q *RemoteQuoter) Quote(ctx context.Context, distanceKm float64, durationMin int) (models.FareQuote, error) {
	const op = "RemoteQuoter.Quote"

	url := fmt.Sprintf("%s/v1/quote?distance_km=%f&duration_min=%d", q.baseURL, distanceKm, durationMin)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("%s: failed to build request: %w", op, err))
	}

	resp, err := q.client.Do(req)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("%s: failed to make request to pricing service: %w", op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("%s: unexpected response status %d", op, resp.StatusCode))
	}

	var quote models.FareQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("%s: failed to decode pricing response: %w", op, err))
	}

	return quote, nil
}
