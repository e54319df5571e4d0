// problems/problems.go
package problems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wfunc/duelserver/models"
)

// ErrUnavailable wraps any transport-level failure talking to the source.
var ErrUnavailable = errors.New("problem source unavailable")

// Source 题目来源。对决激活时引擎调用一次。
type Source interface {
	GetRandomProblem(ctx context.Context, platform string) (*models.Problem, error)
	GetProblemByID(ctx context.Context, id string) (*models.Problem, error)
}

// HTTPSource talks to the external problem service over plain HTTP.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) GetRandomProblem(ctx context.Context, platform string) (*models.Problem, error) {
	endpoint := fmt.Sprintf("%s/problems/random?platform=%s", s.baseURL, url.QueryEscape(platform))
	return s.fetch(ctx, endpoint)
}

func (s *HTTPSource) GetProblemByID(ctx context.Context, id string) (*models.Problem, error) {
	endpoint := fmt.Sprintf("%s/problems/%s", s.baseURL, url.PathEscape(id))
	return s.fetch(ctx, endpoint)
}

func (s *HTTPSource) fetch(ctx context.Context, endpoint string) (*models.Problem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var problem models.Problem
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return &problem, nil
}
