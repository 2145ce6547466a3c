package llm

import (
	"errors"
	"net/url"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/pkg/logger"
)

// newHTTPClient builds the resty client a JSON provider talks through.
// Only the URL path is logged; the Google key travels in the query string.
func newHTTPClient(provider, baseURL string, log *logger.Logger) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	client.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
		path := ""
		if r.Request.RawRequest != nil {
			path = r.Request.RawRequest.URL.Path
		}
		log.Debug("provider request",
			zap.String("provider", provider),
			zap.String("method", r.Request.Method),
			zap.String("path", path),
			zap.Int("status", r.StatusCode()),
			zap.Duration("latency", r.Time()),
		)
		return nil
	})
	client.OnError(func(r *resty.Request, err error) {
		log.Debug("provider request failed",
			zap.String("provider", provider),
			zap.String("method", r.Method),
			zap.Error(err),
		)
	})

	return client
}

// postJSON sends body and returns the raw reply body of a 2xx response.
// Any other status becomes a *ProviderError.
func postJSON(req *resty.Request, path string, body any) ([]byte, error) {
	resp, err := req.SetBody(body).Post(path)
	if err != nil {
		// The URL may carry a credential in its query string.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, urlErr.Err
		}
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode(),
			Message:    apiErrorMessage(resp.Body()),
		}
	}
	return resp.Body(), nil
}
