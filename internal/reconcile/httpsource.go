package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

// HTTPSource pulls authoritative bid state from the negotiation service's
// REST surface.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSource creates a pull source against baseURL, authenticating with
// the given bearer token.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) FetchBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	var b bid.Bid
	if err := s.get(ctx, fmt.Sprintf("%s/v1/bids/%s", s.baseURL, bidID), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *HTTPSource) FetchProjectBids(ctx context.Context, projectID uuid.UUID) ([]*bid.Bid, error) {
	var out struct {
		Bids []*bid.Bid `json:"bids"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/v1/projects/%s/bids", s.baseURL, projectID), &out); err != nil {
		return nil, err
	}
	return out.Bids, nil
}

func (s *HTTPSource) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return bid.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
