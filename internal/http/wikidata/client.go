package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cinelog/cinelog/internal/ratings"
)

const sparqlEndpoint = "https://query.wikidata.org/sparql"

// sparqlQueryTemplate resolves a film entity by its IMDb ID (P345) and
// pulls any review scores (P444) it carries, along with the entity and the
// score-issuing authority (P447) so the origin can be recorded.
const sparqlQueryTemplate = `
SELECT ?item ?score ?byLabel WHERE {
  ?item wdt:P345 "%s".
  ?item p:P444 ?statement.
  ?statement ps:P444 ?score.
  OPTIONAL { ?statement pq:P447 ?by. }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}`

type (
	sparqlBinding struct {
		Item    struct{ Value string } `json:"item"`
		Score   struct{ Value string } `json:"score"`
		ByLabel struct{ Value string } `json:"byLabel"`
	}

	sparqlResponse struct {
		Results struct {
			Bindings []sparqlBinding `json:"bindings"`
		} `json:"results"`
	}

	// Client queries the Wikidata SPARQL endpoint for semantically-tagged
	// review scores, keyed by the same IMDb cross-reference ID the primary
	// ratings provider uses. Wikidata is the complementary source: its
	// observations only fill rating categories the primary could not.
	Client struct{}
)

func NewClient() *Client {
	return &Client{}
}

// FetchRatings retrieves the review score observations Wikidata holds for
// the movie with the provided IMDb ID. Scores issued by Rotten Tomatoes
// are reported as the critic category; everything else as audience.
func (client *Client) FetchRatings(ctx context.Context, imdbID string) ([]ratings.Observation, error) {
	if imdbID == "" {
		return nil, &BadRequestError{"cannot fetch ratings without an IMDb ID"}
	}

	query := fmt.Sprintf(sparqlQueryTemplate, imdbID)
	path := fmt.Sprintf("%s?format=json&query=%s", sparqlEndpoint, url.QueryEscape(query))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &BadRequestError{err.Error()}
	}
	request.Header.Set("Accept", "application/sparql-results+json")

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, &FailedRequestError{reason: err.Error()}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FailedRequestError{reason: fmt.Sprintf("failed to read response body: %s", err.Error())}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FailedRequestError{httpCode: resp.StatusCode, reason: "non-OK response from SPARQL endpoint"}
	}

	var response sparqlResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, &FailedRequestError{reason: fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return observationsFromBindings(response.Results.Bindings), nil
}

func observationsFromBindings(bindings []sparqlBinding) []ratings.Observation {
	observations := make([]ratings.Observation, 0, len(bindings))
	for _, binding := range bindings {
		category := ratings.CategoryAudience
		if binding.ByLabel.Value == "Rotten Tomatoes" {
			category = ratings.CategoryCritic
		}

		observations = append(observations, ratings.Observation{
			Category: category,
			SourceID: entityIDFromURI(binding.Item.Value),
			Text:     binding.Score.Value,
		})
	}

	return observations
}

// entityIDFromURI reduces a full entity URI
// (http://www.wikidata.org/entity/Q190050) to its bare Q-identifier.
func entityIDFromURI(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			return uri[i+1:]
		}
	}

	return uri
}

type (
	BadRequestError    struct{ reason string }
	FailedRequestError struct {
		httpCode int
		reason   string
	}
)

func (err *BadRequestError) Error() string {
	return fmt.Sprintf("illegal Wikidata request: %s", err.reason)
}

func (err *FailedRequestError) Error() string {
	if err.httpCode != 0 {
		return fmt.Sprintf("Wikidata request failure (HTTP %d): %s", err.httpCode, err.reason)
	}

	return fmt.Sprintf("Wikidata request failure: %s", err.reason)
}
