package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cinelog/cinelog/internal/ratings"
)

const omdbGetTemplate = "https://www.omdbapi.com/?i=%s&apikey=%s"

// Rating source labels as OMDb spells them in its Ratings array.
const (
	sourceRottenTomatoes = "Rotten Tomatoes"
	sourceImdb           = "Internet Movie Database"
	sourceMetacritic     = "Metacritic"
)

type (
	Config struct {
		APIKey string
	}

	ratingEntry struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	}

	omdbResponse struct {
		Response string        `json:"Response"`
		Error    string        `json:"Error"`
		ImdbID   string        `json:"imdbID"`
		Ratings  []ratingEntry `json:"Ratings"`
	}

	// Client queries the OMDb API for aggregated rating information, keyed
	// by the IMDb cross-reference ID obtained from the detail provider.
	// OMDb reports each source's rating in that source's native textual
	// form ("81%", "7.4/10", "61/100"); parsing is left to the ratings
	// package.
	Client struct {
		config Config
	}
)

func NewClient(config Config) *Client {
	return &Client{config}
}

// FetchRatings retrieves the rating observations OMDb holds for the movie
// with the provided IMDb ID. Rotten Tomatoes scores are reported as the
// critic category; IMDb (or Metacritic, when IMDb is missing) as the
// audience category.
func (client *Client) FetchRatings(ctx context.Context, imdbID string) ([]ratings.Observation, error) {
	if imdbID == "" {
		return nil, &BadRequestError{"cannot fetch ratings without an IMDb ID"}
	}

	path := fmt.Sprintf(omdbGetTemplate, url.QueryEscape(imdbID), client.config.APIKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &BadRequestError{err.Error()}
	}

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
		return nil, &FailedRequestError{httpCode: resp.StatusCode, reason: "non-OK response from OMDb"}
	}

	var response omdbResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, &FailedRequestError{reason: fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	// OMDb reports application errors inside a 200 response.
	if response.Response != "True" {
		return nil, &FailedRequestError{reason: response.Error}
	}

	return observationsFromResponse(&response), nil
}

func observationsFromResponse(response *omdbResponse) []ratings.Observation {
	observations := make([]ratings.Observation, 0, 2)
	for _, entry := range response.Ratings {
		switch entry.Source {
		case sourceRottenTomatoes:
			observations = append(observations, ratings.Observation{
				Category: ratings.CategoryCritic,
				SourceID: response.ImdbID,
				Text:     entry.Value,
			})
		case sourceImdb, sourceMetacritic:
			observations = append(observations, ratings.Observation{
				Category: ratings.CategoryAudience,
				SourceID: response.ImdbID,
				Text:     entry.Value,
			})
		}
	}

	return observations
}

type (
	BadRequestError    struct{ reason string }
	FailedRequestError struct {
		httpCode int
		reason   string
	}
)

func (err *BadRequestError) Error() string {
	return fmt.Sprintf("illegal OMDb request: %s", err.reason)
}

func (err *FailedRequestError) Error() string {
	if err.httpCode != 0 {
		return fmt.Sprintf("OMDb request failure (HTTP %d): %s", err.httpCode, err.reason)
	}

	return fmt.Sprintf("OMDb request failure: %s", err.reason)
}
