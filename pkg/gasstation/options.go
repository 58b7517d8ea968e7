package gasstation

import (
	"fmt"
	"net/http"
	"time"

	ht "github.com/ogen-go/ogen/http"
)

type bearerClient struct {
	header string
	next   ht.Client
}

func (c bearerClient) Do(r *http.Request) (*http.Response, error) {
	r.Header.Set("Authorization", c.header)
	return c.next.Do(r)
}

var _ ht.Client = &bearerClient{}

type Options struct {
	client       ht.Client
	authToken    string
	timeout      time.Duration
	maxGasBudget uint64
	now          func() time.Time
}

type Option func(o *Options)

// WithAuthToken configures the client to send the station's bearer token with every request.
func WithAuthToken(token string) Option {
	return func(o *Options) {
		o.authToken = token
	}
}

// WithHTTPClient replaces the underlying transport, e.g. with an instrumented client.
func WithHTTPClient(client ht.Client) Option {
	return func(o *Options) {
		o.client = client
	}
}

// WithTimeout limits a single request to the gas station.
// It is ignored when a custom client is set by WithHTTPClient.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.timeout = timeout
	}
}

// WithMaxGasBudget overrides the upper bound accepted by ReserveGas.
func WithMaxGasBudget(budget uint64) Option {
	return func(o *Options) {
		o.maxGasBudget = budget
	}
}

func withClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

func (o *Options) httpClient() ht.Client {
	client := o.client
	if client == nil {
		client = &http.Client{Timeout: o.timeout}
	}
	if o.authToken == "" {
		return client
	}
	return &bearerClient{header: fmt.Sprintf("Bearer %s", o.authToken), next: client}
}
