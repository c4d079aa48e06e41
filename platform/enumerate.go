package platform

import "context"

// PageFunc fetches one page of a listing. token is nil for the first page;
// the returned token is nil or empty when there are no more pages.
type PageFunc[T any] func(ctx context.Context, token *string) (items []T, next *string, err error)

// ListAll follows the page cursor until the service stops returning one and
// returns every item in listing order. A not-found error, which the service
// returns when the parent resource is gone, yields an empty result.
func ListAll[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	var (
		all   []T
		token *string
	)
	for {
		items, next, err := fetch(ctx, token)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		all = append(all, items...)
		if next == nil || *next == "" {
			return all, nil
		}
		token = next
	}
}
