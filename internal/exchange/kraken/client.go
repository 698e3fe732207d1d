package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"novaflow/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	// 所有私有接口的路径前缀，签名时需要去掉
	apiPrefix = "/derivatives"

	pathAccounts      = "/derivatives/api/v3/accounts"
	pathOpenPositions = "/derivatives/api/v3/openpositions"
	pathSendOrder     = "/derivatives/api/v3/sendorder"
	pathOrderStatus   = "/derivatives/api/v3/orders/status"
)

// Client kraken futures v3 私有接口
type Client struct {
	http    *resty.Client
	apiKey  string
	secret  []byte
	limiter *rate.Limiter

	nonceMu   sync.Mutex
	lastNonce int64
}

type ClientOption func(*Client)

// WithRateLimit 每秒最多请求次数
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTimeout 单次请求超时
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewClient secret 为 kraken 后台给出的 base64 字符串
func NewClient(baseURL, apiKey, secret string, opts ...ClientOption) (*Client, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode kraken secret: %w", err)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	c := &Client{
		http:    hc,
		apiKey:  apiKey,
		secret:  key,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// nonce 毫秒时间戳，保证单调递增
func (c *Client) nonce() string {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	n := time.Now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return strconv.FormatInt(n, 10)
}

// Sign Authent = base64(hmac_sha512(base64decode(secret), sha256(postData + nonce + endpointPath)))
func Sign(secret []byte, postData, nonce, endpointPath string) string {
	endpointPath = strings.TrimPrefix(endpointPath, apiPrefix)
	digest := sha256.Sum256([]byte(postData + nonce + endpointPath))
	mac := hmac.New(sha512.New, secret)
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// do 发送签名请求，GET 参数放在 query 中，POST 参数放在 form body 中
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	postData := ""
	if params != nil {
		postData = params.Encode()
	}
	nonce := c.nonce()

	req := c.http.R().
		SetContext(ctx).
		SetHeader("APIKey", c.apiKey).
		SetHeader("Nonce", nonce).
		SetHeader("Authent", Sign(c.secret, postData, nonce, path)).
		SetResult(out)

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		if postData != "" {
			req.SetQueryString(postData)
		}
		resp, err = req.Get(path)
	case http.MethodPost:
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded").SetBody(postData)
		resp, err = req.Post(path)
	default:
		return fmt.Errorf("unsupported method: %s", method)
	}
	if err != nil {
		return fmt.Errorf("kraken %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		logger.Warn("kraken http error",
			logger.Pair("path", path),
			logger.Pair("status", resp.StatusCode()),
			logger.Pair("body", resp.String()))
		return fmt.Errorf("kraken %s %s: http %d: %s", method, path, resp.StatusCode(), resp.String())
	}
	return nil
}
