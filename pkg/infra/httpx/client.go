package httpx

import "net/http"

// Client abstracts the HTTP transport so classifier clients can be exercised
// against test doubles.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}
