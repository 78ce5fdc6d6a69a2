package ports

import (
	"context"

	"github.com/bnema/truck-load-watch/internal/domain"
)

type MarketClient interface {
	Login(ctx context.Context) (domain.SessionToken, error)
	FetchListing(ctx context.Context, session domain.SessionToken) ([]byte, error)
	SubmitAcceptance(ctx context.Context, session domain.SessionToken, fields domain.HiddenFields) error
}

// ListingExtractor returns offers lightest first, ties in page order.
type ListingExtractor interface {
	Extract(document []byte) (domain.Listing, error)
}
