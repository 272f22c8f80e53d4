package llm

import (
	"context"
	"fmt"
	"sync"
)

// ProviderAdapter translates Requests for one provider.
type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client routes requests by provider identifier and retries transient
// failures with bounded backoff.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	retry           RetryPolicy
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider adapter under its name.
func WithProvider(adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[adapter.Name()] = adapter
	}
}

// WithDefaultProvider sets the provider used when a request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterProvider adds or replaces a provider adapter.
func (c *Client) RegisterProvider(adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[adapter.Name()] = adapter
}

// Providers returns the names of all registered adapters.
func (c *Client) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	return names
}

func (c *Client) adapterFor(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{ClientError: ClientError{Message: "no provider specified and no default configured"}}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{ClientError: ClientError{Message: fmt.Sprintf("unknown provider: %s", name)}}
	}
	return adapter, nil
}

// Complete sends the request to the selected provider, retrying transient
// failures per the client's retry policy. Permanent errors and exhausted
// retry budgets surface to the caller.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.adapterFor(req)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	policy := c.retry
	c.mu.RUnlock()

	return Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
		return adapter.Complete(ctx, req)
	})
}
