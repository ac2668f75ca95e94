package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/leadscout/internal/leads"
)

const (
	DefaultAuthURL      = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIBaseURL   = "https://oauth.reddit.com"
	DefaultUserAgent    = "RedditLeadGen/1.0 by AscotLloyd"
	DefaultSectionDelay = 500 * time.Millisecond
)

// DefaultSubreddits is the fixed set of sections every run reads.
var DefaultSubreddits = []string{
	"personalfinance",
	"financialindependence",
	"UKPersonalFinance",
	"investing",
}

// ErrMissingCredentials is returned by CheckCredentials.
var ErrMissingCredentials = errors.New("missing reddit client credentials")

// MissingCredentialsMessage is the user-facing text for ErrMissingCredentials.
const MissingCredentialsMessage = "Missing Reddit credentials. Please add REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET to your environment variables."

// AuthError reports a rejected client-credentials handshake.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("reddit auth status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("reddit auth status %d", e.Status)
}

// UserMessage is the text shown to the dashboard user.
func (e *AuthError) UserMessage() string {
	return fmt.Sprintf("Failed to authenticate with Reddit (%d). Please check your credentials.", e.Status)
}

// FetchError reports a failed listing call for one section.
type FetchError struct {
	Section string
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch r/%s: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("fetch r/%s: status %d", e.Section, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Options struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	AuthURL      string
	APIBaseURL   string
	// SectionDelay separates section fetches. Zero disables the throttle.
	SectionDelay time.Duration
	Subreddits   []string
	HTTPClient   *http.Client
}

// Client talks to the Reddit OAuth API with application-only credentials.
type Client struct {
	clientID     string
	clientSecret string
	userAgent    string
	authURL      string
	apiBaseURL   string
	subreddits   []string
	limiter      *rate.Limiter
	http         *http.Client
	logger       zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	authURL := strings.TrimSpace(opts.AuthURL)
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	apiBaseURL := strings.TrimRight(strings.TrimSpace(opts.APIBaseURL), "/")
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	subreddits := opts.Subreddits
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}
	delay := opts.SectionDelay
	if delay < 0 {
		delay = DefaultSectionDelay
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		clientID:     strings.TrimSpace(opts.ClientID),
		clientSecret: strings.TrimSpace(opts.ClientSecret),
		userAgent:    userAgent,
		authURL:      authURL,
		apiBaseURL:   apiBaseURL,
		subreddits:   append([]string(nil), subreddits...),
		limiter:      rate.NewLimiter(rate.Every(delay), 1),
		http:         httpClient,
		logger:       logger.With().Str("component", "reddit").Logger(),
	}
}

func (c *Client) Subreddits() []string {
	return append([]string(nil), c.subreddits...)
}

// CheckCredentials fails when the client id or secret is not configured.
func (c *Client) CheckCredentials() error {
	if c.clientID == "" || c.clientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Authenticate performs the client-credentials grant and returns a bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if err := c.CheckCredentials(); err != nil {
		return "", err
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build reddit auth request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send reddit auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read reddit auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return token.AccessToken, nil
}

// FetchRecent lists the newest posts of one section.
func (c *Client) FetchRecent(ctx context.Context, token, section string, limit int) ([]leads.Candidate, error) {
	if limit < 1 {
		limit = 1
	}
	endpoint := fmt.Sprintf("%s/r/%s/new?limit=%s", c.apiBaseURL, url.PathEscape(section), strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Section: section, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Section: section, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{Section: section, Status: resp.StatusCode}
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, &FetchError{Section: section, Status: resp.StatusCode, Err: fmt.Errorf("decode listing: %w", err)}
	}

	candidates := make([]leads.Candidate, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if strings.TrimSpace(post.ID) == "" {
			continue
		}
		subreddit := post.Subreddit
		if subreddit == "" {
			subreddit = section
		}
		candidates = append(candidates, leads.Candidate{
			RedditID:   post.ID,
			Title:      post.Title,
			Body:       post.Selftext,
			Subreddit:  subreddit,
			Author:     post.Author,
			Permalink:  post.Permalink,
			CreatedUTC: int64(post.CreatedUTC),
		})
	}
	return candidates, nil
}

// SectionFunc is called before each section is fetched.
type SectionFunc func(index int, section string)

// FetchCandidates reads every configured section in order, one at a time,
// keeping posts created inside window. A failing section is logged and
// contributes nothing. Only context cancellation returns an error.
func (c *Client) FetchCandidates(ctx context.Context, token string, window leads.Window, totalLimit int, onSection SectionFunc) ([]leads.Candidate, error) {
	perSection := PostsPerSection(totalLimit, len(c.subreddits))
	all := make([]leads.Candidate, 0, perSection*len(c.subreddits))

	for i, section := range c.subreddits {
		if err := c.limiter.Wait(ctx); err != nil {
			return all, fmt.Errorf("wait for reddit section throttle: %w", err)
		}
		if onSection != nil {
			onSection(i, section)
		}

		posts, err := c.FetchRecent(ctx, token, section, perSection)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return all, ctxErr
			}
			c.logger.Warn().Err(err).Str("subreddit", section).Msg("subreddit fetch failed, skipping")
			continue
		}

		kept := 0
		for _, post := range posts {
			if !window.Contains(post.CreatedAt()) {
				continue
			}
			all = append(all, post)
			kept++
		}
		c.logger.Debug().
			Str("subreddit", section).
			Int("fetched", len(posts)).
			Int("in_window", kept).
			Msg("subreddit fetched")
	}
	return all, nil
}

// PostsPerSection splits totalLimit evenly across sections, rounding up.
func PostsPerSection(totalLimit, sections int) int {
	if sections <= 0 {
		return 0
	}
	if totalLimit < 1 {
		totalLimit = 1
	}
	return int(math.Ceil(float64(totalLimit) / float64(sections)))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}
