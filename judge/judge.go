// judge/judge.go
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
)

// ErrUnavailable wraps any transport-level failure talking to the judge.
var ErrUnavailable = errors.New("judge unavailable")

// Verdict 一次提交的判题结果
type Verdict struct {
	Passed  bool                 `json:"passed"`
	Results []network.TestResult `json:"results"`
}

// Gateway 判题服务。引擎把每次提交当作一次异步调用。
type Gateway interface {
	Judge(ctx context.Context, code, language string, tests []models.SampleTest) (*Verdict, error)
}

type judgeRequest struct {
	Code     string              `json:"code"`
	Language string              `json:"language"`
	Tests    []models.SampleTest `json:"tests"`
}

// HTTPGateway submits code to the external execution service over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Judge(ctx context.Context, code, language string, tests []models.SampleTest) (*Verdict, error) {
	body, err := json.Marshal(judgeRequest{Code: code, Language: language, Tests: tests})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/judge", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return &verdict, nil
}
