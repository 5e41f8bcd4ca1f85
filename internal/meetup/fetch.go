package meetup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	appLog "kcevents/internal/log"
)

const (
	// DefaultEndpoint is Meetup's GraphQL API.
	DefaultEndpoint = "https://api.meetup.com/gql-ext"
	// DefaultGroup is the group urlname the site lists events for.
	DefaultGroup = "code-and-coffee-kc"
)

// eventsQuery asks for every field the normalizer needs and nothing else.
const eventsQuery = `query ($urlname: String!) {
  groupByUrlname(urlname: $urlname) {
    id
    name
    events {
      totalCount
      edges {
        node {
          id
          title
          description
          eventUrl
          dateTime
          endTime
          status
        }
      }
    }
  }
}`

// RawEvent is an event node exactly as the API returns it. Optional fields
// are pointers so that null and absent stay distinguishable from "".
type RawEvent struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	EventURL    *string `json:"eventUrl"`
	DateTime    string  `json:"dateTime"`
	EndTime     *string `json:"endTime"`
	Status      string  `json:"status"`
}

// RawEventSet is the unfiltered result of one query, in response order.
type RawEventSet struct {
	GroupID    string
	GroupName  string
	TotalCount int
	Events     []RawEvent
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data *struct {
		Group *struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Events *struct {
				TotalCount int `json:"totalCount"`
				Edges      []struct {
					Node *RawEvent `json:"node"`
				} `json:"edges"`
			} `json:"events"`
		} `json:"groupByUrlname"`
	} `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// Fetcher issues the event query. It never retries.
type Fetcher struct {
	Endpoint string
	Client   *http.Client
}

// NewFetcher creates a Fetcher for endpoint (DefaultEndpoint when empty).
func NewFetcher(endpoint string, client *http.Client) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Fetcher{Endpoint: endpoint, Client: client}
}

// FetchEvents runs the query for group with accessToken as bearer and
// returns the raw events, or a *FetchError.
func (f *Fetcher) FetchEvents(ctx context.Context, accessToken, group string) (RawEventSet, error) {
	if group == "" {
		return RawEventSet{}, &FetchError{Err: errors.New("group urlname is empty")}
	}

	payload, err := json.Marshal(graphQLRequest{
		Query:     eventsQuery,
		Variables: map[string]any{"urlname": group},
	})
	if err != nil {
		return RawEventSet{}, &FetchError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return RawEventSet{}, &FetchError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	appLog.Info("events fetch start", "group", group, "endpoint", redactURL(f.Endpoint))

	resp, err := f.authorizedClient(accessToken).Do(req)
	if err != nil {
		return RawEventSet{}, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawEventSet{}, &FetchError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RawEventSet{}, &FetchError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
			Err:        errors.New(resp.Status),
		}
	}

	var gr graphQLResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return RawEventSet{}, &FetchError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
			Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}
	if len(gr.Errors) > 0 {
		return RawEventSet{}, &FetchError{StatusCode: resp.StatusCode, Errors: gr.Errors, Err: ErrGraphQL}
	}
	if gr.Data == nil || gr.Data.Group == nil {
		return RawEventSet{}, &FetchError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: groupByUrlname missing", ErrMalformedResponse),
		}
	}

	g := gr.Data.Group
	set := RawEventSet{GroupID: g.ID, GroupName: g.Name}
	if g.Events != nil {
		set.TotalCount = g.Events.TotalCount
		set.Events = make([]RawEvent, 0, len(g.Events.Edges))
		for _, edge := range g.Events.Edges {
			if edge.Node == nil {
				continue
			}
			set.Events = append(set.Events, *edge.Node)
		}
	}

	appLog.Info("events fetch success", "group", group, "group_name", set.GroupName, "raw_count", len(set.Events), "total_count", set.TotalCount)
	return set, nil
}

// authorizedClient wraps f.Client so every request carries the bearer token.
func (f *Fetcher) authorizedClient(accessToken string) *http.Client {
	base := f.Client
	if base == nil {
		base = NewHTTPClient(0)
	}
	c := *base
	c.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
		Base:   base.Transport,
	}
	return &c
}
