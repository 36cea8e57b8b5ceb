package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	tmdbBaseURL = "https://api.themoviedb.org/3"

	tmdbSearchMovieTemplate   = "%s/search/movie?query=%s&api_key=%s"
	tmdbGetMovieTemplate      = "%s/movie/%s?append_to_response=credits&api_key=%s"
	tmdbConfigurationTemplate = "%s/configuration?api_key=%s"
)

type (
	Date   struct{ time.Time }
	Config struct {
		APIKey string
	}

	SearchResult struct {
		Results      []SearchResultItem `json:"results"`
		TotalPages   int                `json:"total_pages"`
		TotalResults int                `json:"total_results"`
	}

	SearchResultItem struct {
		ID            json.Number `json:"id"`
		Title         string      `json:"title"`
		OriginalTitle string      `json:"original_title"`
		Plot          string      `json:"overview"`
		PosterPath    string      `json:"poster_path"`
		GenreIDs      []int       `json:"genre_ids"`
		ReleaseDate   *Date       `json:"release_date"`
	}

	GenreRef struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	CastCredit struct {
		ID           json.Number `json:"id"`
		Name         string      `json:"name"`
		OriginalName string      `json:"original_name"`
		ProfilePath  string      `json:"profile_path"`
		Character    string      `json:"character"`
		Order        int         `json:"order"`
	}

	CrewCredit struct {
		ID           json.Number `json:"id"`
		Name         string      `json:"name"`
		OriginalName string      `json:"original_name"`
		ProfilePath  string      `json:"profile_path"`
		Job          string      `json:"job"`
		Department   string      `json:"department"`
	}

	Credits struct {
		Cast []CastCredit `json:"cast"`
		Crew []CrewCredit `json:"crew"`
	}

	MovieDetail struct {
		ID            json.Number `json:"id"`
		ImdbID        string      `json:"imdb_id"`
		Title         string      `json:"title"`
		OriginalTitle string      `json:"original_title"`
		Plot          string      `json:"overview"`
		Tagline       string      `json:"tagline"`
		Runtime       int         `json:"runtime"`
		ReleaseDate   *Date       `json:"release_date"`
		PosterPath    string      `json:"poster_path"`
		BackdropPath  string      `json:"backdrop_path"`
		Genres        []GenreRef  `json:"genres"`
		Credits       Credits     `json:"credits"`
	}

	ImageConfiguration struct {
		Images struct {
			SecureBaseURL string   `json:"secure_base_url"`
			PosterSizes   []string `json:"poster_sizes"`
			BackdropSizes []string `json:"backdrop_sizes"`
			ProfileSizes  []string `json:"profile_sizes"`
		} `json:"images"`
	}

	// Client is the primary metadata source for the catalog. It performs
	// title search, full detail retrieval (with credits appended) and image
	// configuration fetches against the TMDB API.
	// See https://developer.themoviedb.org/reference/intro/getting-started
	// for information on the TMDB API.
	Client struct {
		config Config
	}
)

func NewClient(config Config) *Client {
	return &Client{config}
}

// SearchByTitle queries TMDB for movies matching the provided title. Zero
// results is a legal response, not an error; the caller owns the
// zero/one/many decision.
func (client *Client) SearchByTitle(ctx context.Context, query string) ([]SearchResultItem, error) {
	path := fmt.Sprintf(tmdbSearchMovieTemplate, tmdbBaseURL, url.QueryEscape(query), client.config.APIKey)
	var searchResult SearchResult
	if err := httpGetJSONResponse(ctx, path, &searchResult); err != nil {
		return nil, err
	}

	return searchResult.Results, nil
}

// FetchDetails queries TMDB for the movie with the provided string ID,
// with cast/crew credits appended. The ID must be a valid TMDB ID, or else
// an error will be returned.
func (client *Client) FetchDetails(ctx context.Context, externalID string) (*MovieDetail, error) {
	path := fmt.Sprintf(tmdbGetMovieTemplate, tmdbBaseURL, externalID, client.config.APIKey)
	var detail MovieDetail
	if err := httpGetJSONResponse(ctx, path, &detail); err != nil {
		return nil, err
	}

	return &detail, nil
}

// FetchConfiguration queries TMDB for the current image configuration
// (base URL and size path segments).
func (client *Client) FetchConfiguration(ctx context.Context) (*ImageConfiguration, error) {
	path := fmt.Sprintf(tmdbConfigurationTemplate, tmdbBaseURL, client.config.APIKey)
	var configuration ImageConfiguration
	if err := httpGetJSONResponse(ctx, path, &configuration); err != nil {
		return nil, err
	}

	return &configuration, nil
}

// Year returns the release year of the result, or nil when TMDB supplied
// no date.
func (entry *SearchResultItem) Year() *int {
	if entry.ReleaseDate == nil {
		return nil
	}

	year := entry.ReleaseDate.Year()
	return &year
}

func (date *Date) UnmarshalJSON(dateBytes []byte) error {
	trimmedDateString := string(dateBytes[1 : len(dateBytes)-1])
	if trimmedDateString == "" {
		return nil
	}

	parsed, err := time.Parse(time.DateOnly, trimmedDateString)
	if err != nil {
		return fmt.Errorf("cannot unmarshal Date due to error: %w", err)
	}

	*date = Date{parsed}
	return nil
}

func httpGetJSONResponse(ctx context.Context, urlPath string, targetInterface interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to construct GET(%s) to TMDB: %s", urlPath, err.Error())}
	}

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to TMDB: %s", urlPath, err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var tmdbErr tmdbError
		if err := json.Unmarshal(respBody, &tmdbErr); err != nil {
			return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response could not be unmarshalled", tmdbCode: -1}
		}

		return &FailedRequestError{httpCode: resp.StatusCode, message: tmdbErr.StatusMessage, tmdbCode: tmdbErr.StatusCode}
	}

	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if err := json.Unmarshal(respBody, targetInterface); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

type (
	tmdbError struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	FailedRequestError struct {
		httpCode int
		tmdbCode int
		message  string
	}
	UnknownRequestError struct{ reason string }
)

func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with TMDB: %s", err.reason)
}

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("request failure (HTTP %d): %s", err.httpCode, err.message)
}
