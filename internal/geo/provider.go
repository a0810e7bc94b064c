package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
)

// Базовые URL провайдеров по умолчанию
const (
	DefaultIPInfoBaseURL = "https://ipinfo.io"
	DefaultIPAPIBaseURL  = "http://ip-api.com"

	// DefaultLookupTimeout таймаут одного обращения к провайдеру
	DefaultLookupTimeout = 3 * time.Second
)

var (
	// ErrBadPayload провайдер ответил, но данные непригодны
	ErrBadPayload = errors.New("provider returned unusable payload")
)

// Provider один внешний сервис геолокации. Lookup обязан уважать дедлайн
// контекста и возвращать ошибку на любой непригодный ответ (сетевая ошибка,
// не-2xx статус, rate limit, битый JSON, невалидные координаты).
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*models.GeoLocation, error)
}

// ipinfoProvider основной провайдер: ipinfo.io (щедрый бесплатный лимит)
type ipinfoProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPInfoProvider создаёт провайдер ipinfo.io
func NewIPInfoProvider(baseURL string, client *http.Client) Provider {
	if baseURL == "" {
		baseURL = DefaultIPInfoBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ipinfoProvider{baseURL: baseURL, client: client}
}

func (p *ipinfoProvider) Name() string {
	return "ipinfo"
}

// ipinfoResponse формат ответа ipinfo.io: координаты приходят строкой "lat,lng"
type ipinfoResponse struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
	Loc     string `json:"loc"`
	Bogon   bool   `json:"bogon"`
}

func (p *ipinfoProvider) Lookup(ctx context.Context, ip string) (*models.GeoLocation, error) {
	var resp ipinfoResponse
	url := fmt.Sprintf("%s/%s/json", p.baseURL, ip)
	if err := getJSON(ctx, p.client, url, &resp); err != nil {
		return nil, err
	}

	if resp.Bogon {
		return nil, fmt.Errorf("%w: bogon IP address", ErrBadPayload)
	}

	// Поле loc приходит строкой "lat,lng" — приводим к числам
	lat, lng, err := parseLoc(resp.Loc)
	if err != nil {
		return nil, err
	}

	geo := &models.GeoLocation{
		Country:     countryName(resp.Country),
		CountryCode: resp.Country,
		Region:      resp.Region,
		City:        resp.City,
		Latitude:    lat,
		Longitude:   lng,
	}

	if !geo.IsValid() {
		return nil, fmt.Errorf("%w: incomplete geo data", ErrBadPayload)
	}

	return geo, nil
}

// parseLoc разбирает строку координат "lat,lng"
func parseLoc(loc string) (float64, float64, error) {
	parts := strings.SplitN(loc, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: malformed loc %q", ErrBadPayload, loc)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad latitude: %v", ErrBadPayload, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad longitude: %v", ErrBadPayload, err)
	}

	return lat, lng, nil
}

// ipapiProvider резервный провайдер: ip-api.com
type ipapiProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPIProvider создаёт провайдер ip-api.com
func NewIPAPIProvider(baseURL string, client *http.Client) Provider {
	if baseURL == "" {
		baseURL = DefaultIPAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ipapiProvider{baseURL: baseURL, client: client}
}

func (p *ipapiProvider) Name() string {
	return "ip-api"
}

type ipapiResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

func (p *ipapiProvider) Lookup(ctx context.Context, ip string) (*models.GeoLocation, error) {
	var resp ipapiResponse
	url := fmt.Sprintf("%s/json/%s?fields=status,message,country,countryCode,regionName,city,lat,lon", p.baseURL, ip)
	if err := getJSON(ctx, p.client, url, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "fail" {
		msg := resp.Message
		if msg == "" {
			msg = "IP lookup failed"
		}
		return nil, fmt.Errorf("%w: %s", ErrBadPayload, msg)
	}

	country := resp.Country
	if name := countryName(resp.CountryCode); resp.CountryCode != "" && name != resp.CountryCode {
		country = name
	}

	geo := &models.GeoLocation{
		Country:     country,
		CountryCode: resp.CountryCode,
		Region:      resp.RegionName,
		City:        resp.City,
		Latitude:    resp.Lat,
		Longitude:   resp.Lon,
	}

	if !geo.IsValid() {
		return nil, fmt.Errorf("%w: incomplete geo data", ErrBadPayload)
	}

	return geo, nil
}

// getJSON выполняет GET с дедлайном контекста и декодирует JSON-ответ
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBadPayload, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	return nil
}

// countryName разворачивает ISO2-код в отображаемое имя для самых частых стран.
// Остальные коды возвращаются как есть.
func countryName(code string) string {
	switch code {
	case "US":
		return "United States"
	case "GB":
		return "United Kingdom"
	default:
		return code
	}
}
