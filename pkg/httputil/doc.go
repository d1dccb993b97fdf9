// Package httputil provides the HTTP plumbing shared by repository engines.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff when it fails with a
// [RetryableError]. Wrap transient failures (connection errors, 5xx
// responses, 429 rate limiting) so they are retried; anything else is
// returned immediately:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckStatus(resp)
//	})
//
// # Status classification
//
// [CheckStatus] maps a response status to an error: 404 and 410 become
// [ErrNotFound], 5xx and 429 become retryable NETWORK_ERROR, other non-2xx
// statuses become a plain NETWORK_ERROR.
//
// Default settings:
//
//   - Attempts: 3
//   - Base backoff: 1 second, doubling after each attempt
package httputil
