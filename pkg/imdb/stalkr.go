package imdb

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/StalkR/imdb"
	"github.com/ogero/stremio-autoarabic/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type stalkrIMDB struct {
	httpClient *http.Client
	getTitle   func(c *http.Client, id string) (*imdb.Title, error)
}

// NewStalkrIMDB creates a new instance of the Stalkr implementation of the IMDB service.
func NewStalkrIMDB() IMDB {
	return &stalkrIMDB{
		httpClient: transport.NewHTTPClient(10*time.Second,
			transport.WithAcceptLanguage("en"), // avoid IP-based language detection
			transport.WithUserAgent(transport.BrowserUserAgent),
		),
		getTitle: imdb.NewTitle,
	}
}

// GetTitle gets a Title by its ID.
func (c *stalkrIMDB) GetTitle(ctx context.Context, imdbID string) (*Title, error) {

	_, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "imdb.IMDB.GetTitle")
	defer span.End()

	imdbResult, err := c.getTitle(c.httpClient, imdbID)
	if err != nil {
		return nil, fmt.Errorf("failed to stalkrIMDB.getTitle: %w", err)
	}
	span.SetAttributes(attribute.String("imdb.title", imdbResult.Name))

	return &Title{
		Name: imdbResult.Name,
		Year: imdbResult.Year,
		Type: imdbResult.Type,
	}, nil
}
