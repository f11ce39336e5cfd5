// Package chain talks to the Algorand Indexer REST API. The client is a
// thin request/response wrapper: it retains connection config and nothing
// else.
package chain

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"ticketsync/internal/model"
)

// QueryError reports a transport or service failure while querying the
// indexer. The scheduler treats it as retryable.
type QueryError struct {
	Op     string
	Status int
	Err    error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: indexer returned status %d", e.Op, e.Status)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Client wraps the indexer's transaction-search endpoints.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for the given indexer base URL. The token is
// optional; public indexers accept unauthenticated queries.
func NewClient(baseURL, token string) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if token != "" {
		httpClient.SetHeader("X-Indexer-API-Token", token)
	}
	return &Client{http: httpClient}
}

type searchResponse struct {
	CurrentRound uint64                 `json:"current-round"`
	NextToken    string                 `json:"next-token"`
	Transactions []model.RawTransaction `json:"transactions"`
}

// SearchApplicationTransactions returns one page of confirmed transactions
// against the application, ascending by confirmed round, plus the
// pagination token for the next page (empty when the results are
// exhausted). minRound 0 means from genesis; nextToken "" starts a fresh
// search.
func (c *Client) SearchApplicationTransactions(ctx context.Context, appID, minRound uint64, limit uint32, nextToken string) ([]model.RawTransaction, string, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("application-id", strconv.FormatUint(appID, 10)).
		SetQueryParam("limit", strconv.FormatUint(uint64(limit), 10))
	if minRound > 0 {
		req.SetQueryParam("min-round", strconv.FormatUint(minRound, 10))
	}
	if nextToken != "" {
		req.SetQueryParam("next", nextToken)
	}

	var out searchResponse
	resp, err := req.SetResult(&out).Get("/v2/transactions")
	if err != nil {
		return nil, "", &QueryError{Op: "search application transactions", Err: err}
	}
	if resp.IsError() {
		return nil, "", &QueryError{Op: "search application transactions", Status: resp.StatusCode()}
	}

	// The indexer returns ascending round order already; the cursor logic
	// depends on it, so re-sort rather than trust the upstream.
	txns := out.Transactions
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].ConfirmedRound < txns[j].ConfirmedRound
	})
	return txns, out.NextToken, nil
}

// LookupGroupPayment finds the payment leg of an atomic group within one
// confirmed round and returns its amount. The second return is false when
// the round holds no matching payment.
func (c *Client) LookupGroupPayment(ctx context.Context, round uint64, groupID string) (uint64, bool, error) {
	if groupID == "" {
		return 0, false, nil
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("round", strconv.FormatUint(round, 10)).
		SetQueryParam("tx-type", model.TxTypePayment).
		SetResult(&out).
		Get("/v2/transactions")
	if err != nil {
		return 0, false, &QueryError{Op: "lookup group payment", Err: err}
	}
	if resp.IsError() {
		return 0, false, &QueryError{Op: "lookup group payment", Status: resp.StatusCode()}
	}

	for _, txn := range out.Transactions {
		if txn.Group == groupID && txn.Payment != nil {
			return txn.Payment.Amount, true, nil
		}
	}
	return 0, false, nil
}
