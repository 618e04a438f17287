// Package riot is a small client for the Riot account, league and match APIs.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RankedSoloQueue is the match-v5 queue id for ranked solo/duo.
const RankedSoloQueue = 420

const maxRetryWait = 2 * time.Second

// platforms maps short region codes to platform routing values.
var platforms = map[string]string{
	"euw":  "euw1",
	"eune": "eun1",
	"na":   "na1",
	"kr":   "kr",
	"jp":   "jp1",
	"br":   "br1",
	"las":  "la2",
	"lan":  "la1",
	"oce":  "oc1",
	"ru":   "ru",
	"tr":   "tr1",
}

// regionals maps short region codes to regional routing values for match-v5.
var regionals = map[string]string{
	"euw":  "europe",
	"eune": "europe",
	"ru":   "europe",
	"tr":   "europe",
	"na":   "americas",
	"br":   "americas",
	"las":  "americas",
	"lan":  "americas",
	"kr":   "asia",
	"jp":   "asia",
	"oce":  "sea",
}

// StatusError is a non-2xx answer from the Riot API.
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("riot api returned %d for %s", e.StatusCode, e.URL)
}

// ErrNoAPIKey is returned by every call when no key is configured.
var ErrNoAPIKey = errors.New("no Riot API key configured")

type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type LeagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

type Participant struct {
	PUUID              string `json:"puuid"`
	ChampionName       string `json:"championName"`
	TeamPosition       string `json:"teamPosition"`
	IndividualPosition string `json:"individualPosition"`
	Kills              int    `json:"kills"`
	Deaths             int    `json:"deaths"`
	Assists            int    `json:"assists"`
	Win                bool   `json:"win"`
}

type Match struct {
	Metadata struct {
		MatchID string `json:"matchId"`
	} `json:"metadata"`
	Info struct {
		GameCreation int64         `json:"gameCreation"`
		QueueID      int           `json:"queueId"`
		Participants []Participant `json:"participants"`
	} `json:"info"`
}

// Find returns the participant with puuid, or nil.
func (m *Match) Find(puuid string) *Participant {
	for i := range m.Info.Participants {
		if m.Info.Participants[i].PUUID == puuid {
			return &m.Info.Participants[i]
		}
	}
	return nil
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sends every request to baseURL instead of the routed
// *.api.riotgames.com hosts.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(20, 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	if apiKey == "" {
		log.Printf("[WARN] No Riot API key provided, profiles will use mock data")
	}
	return c
}

// HasKey reports whether live lookups are possible.
func (c *Client) HasKey() bool { return c.apiKey != "" }

// ValidRegion reports whether region has Riot routing.
func ValidRegion(region string) bool {
	_, ok := platforms[region]
	return ok
}

// DefaultTagLine is the tag assumed when a Riot ID has none, e.g. "EUW".
func DefaultTagLine(region string) string {
	return strings.ToUpper(region)
}

// SplitRiotID splits "Name#TAG"; a missing tag falls back to the region default.
func SplitRiotID(riotID, region string) (gameName, tagLine string) {
	riotID = strings.TrimSpace(riotID)
	if i := strings.LastIndex(riotID, "#"); i >= 0 {
		gameName, tagLine = strings.TrimSpace(riotID[:i]), strings.TrimSpace(riotID[i+1:])
	} else {
		gameName = riotID
	}
	if tagLine == "" {
		tagLine = DefaultTagLine(region)
	}
	return gameName, tagLine
}

// GetAccount resolves a Riot ID to an account.
func (c *Client) GetAccount(ctx context.Context, gameName, tagLine, region string) (*Account, error) {
	host, err := c.accountHost(region)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		host, url.PathEscape(gameName), url.PathEscape(tagLine))

	var acc Account
	if err := c.get(ctx, u, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetRankedSolo returns the ranked solo/duo entry, or nil if the account is unranked.
func (c *Client) GetRankedSolo(ctx context.Context, puuid, region string) (*LeagueEntry, error) {
	host, err := c.platformHost(region)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", host, url.PathEscape(puuid))

	var entries []LeagueEntry
	if err := c.get(ctx, u, &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].QueueType == "RANKED_SOLO_5x5" {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// GetMatchIDs returns up to count recent ranked solo match ids, newest first.
func (c *Client) GetMatchIDs(ctx context.Context, puuid, region string, count int) ([]string, error) {
	host, err := c.regionalHost(region)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("queue", strconv.Itoa(RankedSoloQueue))
	q.Set("start", "0")
	q.Set("count", strconv.Itoa(count))
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s", host, url.PathEscape(puuid), q.Encode())

	var ids []string
	if err := c.get(ctx, u, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) GetMatch(ctx context.Context, matchID, region string) (*Match, error) {
	host, err := c.regionalHost(region)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", host, url.PathEscape(matchID))

	var m Match
	if err := c.get(ctx, u, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) platformHost(region string) (string, error) {
	p, ok := platforms[region]
	if !ok {
		return "", fmt.Errorf("invalid region: %s", region)
	}
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	return "https://" + p + ".api.riotgames.com", nil
}

func (c *Client) regionalHost(region string) (string, error) {
	r, ok := regionals[region]
	if !ok {
		return "", fmt.Errorf("invalid region: %s", region)
	}
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	return "https://" + r + ".api.riotgames.com", nil
}

// accountHost routes account-v1, which is not served from sea.
func (c *Client) accountHost(region string) (string, error) {
	r, ok := regionals[region]
	if !ok {
		return "", fmt.Errorf("invalid region: %s", region)
	}
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	if r == "sea" {
		r = "asia"
	}
	return "https://" + r + ".api.riotgames.com", nil
}

// get performs a rate-limited GET with at most one retry on transient failure.
func (c *Client) get(ctx context.Context, u string, dest interface{}) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	err := c.do(ctx, u, dest)
	if err == nil || !IsTransient(err) || ctx.Err() != nil {
		return err
	}

	wait := 200 * time.Millisecond
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		wait = min(statusErr.RetryAfter, maxRetryWait)
	}
	log.Printf("[WARN] riot request %s failed (%v), retrying once in %v", u, err, wait)

	select {
	case <-ctx.Done():
		return err
	case <-time.After(wait):
	}
	return c.do(ctx, u, dest)
}

func (c *Client) do(ctx context.Context, u string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{URL: u, StatusCode: resp.StatusCode}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			statusErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// IsTransient reports whether a retry may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsNotFound reports a 404 from the Riot API.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// IsForbidden reports a rejected or expired API key.
func IsForbidden(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) &&
		(statusErr.StatusCode == http.StatusForbidden || statusErr.StatusCode == http.StatusUnauthorized)
}
