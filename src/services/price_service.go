package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/optifolio/src/config"
	"github.com/username/optifolio/src/logger"
	"golang.org/x/net/publicsuffix"
)

// PriceInfo is the quote shape returned to the frontend regardless of venue.
type PriceInfo struct {
	Status    string  `json:"status"` // "OK" or "UNAVAILABLE"
	Venue     string  `json:"venue,omitempty"`
	Mark      float64 `json:"mark,omitempty"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// PriceService fetches live option quotes from the exchanges' public APIs.
type PriceService interface {
	GetOptionPrices(venue string, instruments []string) (map[string]PriceInfo, error)
}

type deribitTickerResponse struct {
	Result struct {
		MarkPrice float64 `json:"mark_price"`
		BestBid   float64 `json:"best_bid_price"`
		BestAsk   float64 `json:"best_ask_price"`
		Timestamp int64   `json:"timestamp"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type coincallDetailResponse struct {
	Code int `json:"code"`
	Data struct {
		MarkPrice float64 `json:"markPrice"`
		BidPrice  float64 `json:"bidPrice"`
		AskPrice  float64 `json:"askPrice"`
		Time      int64   `json:"time"`
	} `json:"data"`
	Msg string `json:"msg"`
}

// priceServiceImpl keeps quotes in a short-TTL cache so list screens that
// poll do not hammer the public endpoints.
type priceServiceImpl struct {
	httpClient   http.Client
	quoteCache   *cache.Cache
	deribitBase  string
	coincallBase string
}

// NewPriceService creates the quote fetcher. The cookie jar keeps any
// session cookies the exchanges set on their public endpoints.
func NewPriceService() PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: 20 * time.Second,
	}

	return &priceServiceImpl{
		httpClient:   client,
		quoteCache:   cache.New(config.Cfg.PriceCacheTTL, 5*time.Minute),
		deribitBase:  config.Cfg.DeribitAPIBaseURL,
		coincallBase: config.Cfg.CoincallAPIBaseURL,
	}
}

// GetOptionPrices fetches quotes for a list of instrument symbols on one
// venue. Instruments that fail stay in the result as UNAVAILABLE so the
// caller can render partial data.
func (s *priceServiceImpl) GetOptionPrices(venue string, instruments []string) (map[string]PriceInfo, error) {
	result := make(map[string]PriceInfo, len(instruments))
	for _, instrument := range instruments {
		if instrument == "" {
			continue
		}
		result[instrument] = PriceInfo{Status: "UNAVAILABLE", Venue: venue}

		key := venue + ":" + instrument
		if cached, found := s.quoteCache.Get(key); found {
			if info, ok := cached.(PriceInfo); ok {
				result[instrument] = info
				continue
			}
		}

		var info PriceInfo
		var err error
		switch venue {
		case "deribit":
			info, err = s.fetchDeribitTicker(instrument)
		case "coincall":
			info, err = s.fetchCoincallDetail(instrument)
		default:
			return result, fmt.Errorf("unsupported venue for price lookup: %s", venue)
		}
		if err != nil {
			logger.L.Warn("Price fetch failed", "venue", venue, "instrument", instrument, "error", err)
			continue
		}
		info.Venue = venue
		s.quoteCache.Set(key, info, cache.DefaultExpiration)
		result[instrument] = info
	}
	return result, nil
}

func (s *priceServiceImpl) fetchDeribitTicker(instrument string) (PriceInfo, error) {
	endpoint := fmt.Sprintf("%s/api/v2/public/ticker?instrument_name=%s", s.deribitBase, url.QueryEscape(instrument))
	body, err := s.get(endpoint)
	if err != nil {
		return PriceInfo{}, err
	}
	var ticker deribitTickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return PriceInfo{}, fmt.Errorf("failed to decode deribit ticker for %s: %w", instrument, err)
	}
	if ticker.Error != nil {
		return PriceInfo{}, fmt.Errorf("deribit ticker error for %s: %s", instrument, ticker.Error.Message)
	}
	return PriceInfo{
		Status:    "OK",
		Mark:      ticker.Result.MarkPrice,
		Bid:       ticker.Result.BestBid,
		Ask:       ticker.Result.BestAsk,
		Timestamp: time.UnixMilli(ticker.Result.Timestamp).UTC().Format(time.RFC3339),
	}, nil
}

func (s *priceServiceImpl) fetchCoincallDetail(instrument string) (PriceInfo, error) {
	endpoint := fmt.Sprintf("%s/open/option/detail/v1?symbol=%s", s.coincallBase, url.QueryEscape(instrument))
	body, err := s.get(endpoint)
	if err != nil {
		return PriceInfo{}, err
	}
	var detail coincallDetailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return PriceInfo{}, fmt.Errorf("failed to decode coincall detail for %s: %w", instrument, err)
	}
	if detail.Code != 0 {
		return PriceInfo{}, fmt.Errorf("coincall detail error for %s: %s", instrument, detail.Msg)
	}
	return PriceInfo{
		Status:    "OK",
		Mark:      detail.Data.MarkPrice,
		Bid:       detail.Data.BidPrice,
		Ask:       detail.Data.AskPrice,
		Timestamp: time.UnixMilli(detail.Data.Time).UTC().Format(time.RFC3339),
	}, nil
}

func (s *priceServiceImpl) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "optifolio/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("non-OK status %d from %s. Body: %s", resp.StatusCode, endpoint, string(bodyBytes))
	}
	return io.ReadAll(resp.Body)
}
