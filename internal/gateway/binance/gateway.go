// Package binance implements exchange.OrderGateway against Binance spot via
// the go-binance SDK.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
)

// Binance error codes that mean "the order is already gone".
const (
	codeUnknownOrder  = -2011 // cancel rejected: unknown order
	codeOrderNotExist = -2013 // query: order does not exist
)

// Gateway talks to Binance spot for a single symbol.
type Gateway struct {
	cfg    Config
	client *binance.Client

	filterMu   sync.Mutex
	filterSet  filters.SymbolFilters
	filterOnce bool
}

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	if final.Symbol == "" {
		return nil, fmt.Errorf("binance gateway: symbol is required")
	}
	client := binance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Gateway{cfg: final, client: client}, nil
}

func (g *Gateway) PlaceLimitOrder(ctx context.Context, side ledger.Side, price, qty float64, clientID string) (exchange.Order, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(g.cfg.Symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Price(formatDecimal(price)).
		Quantity(formatDecimal(qty)).
		NewClientOrderID(clientID)
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.Order{}, fmt.Errorf("place %s %s@%s: %w", side, formatDecimal(qty), formatDecimal(price), err)
	}
	return exchange.Order{
		Symbol:      res.Symbol,
		Side:        side,
		Price:       parseFloat(res.Price),
		Quantity:    parseFloat(res.OrigQuantity),
		ExecutedQty: parseFloat(res.ExecutedQuantity),
		ClientID:    res.ClientOrderID,
		ExchangeID:  strconv.FormatInt(res.OrderID, 10),
		Status:      mapStatus(res.Status),
		CreatedAt:   time.UnixMilli(res.TransactTime),
		UpdatedAt:   time.UnixMilli(res.TransactTime),
	}, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, ref exchange.OrderRef) error {
	svc := g.client.NewCancelOrderService().Symbol(g.cfg.Symbol)
	switch {
	case ref.ClientID != "":
		svc.OrigClientOrderID(ref.ClientID)
	case ref.ExchangeID != "":
		id, err := strconv.ParseInt(ref.ExchangeID, 10, 64)
		if err != nil {
			return fmt.Errorf("cancel: bad exchange id %q: %w", ref.ExchangeID, err)
		}
		svc.OrderID(id)
	default:
		return fmt.Errorf("cancel: empty order reference")
	}
	if _, err := svc.Do(ctx); err != nil {
		if isGoneCode(err) {
			return fmt.Errorf("%w: %v", exchange.ErrAlreadyInactive, err)
		}
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

func (g *Gateway) GetOrder(ctx context.Context, ref exchange.OrderRef) (exchange.Order, error) {
	svc := g.client.NewGetOrderService().Symbol(g.cfg.Symbol)
	switch {
	case ref.ClientID != "":
		svc.OrigClientOrderID(ref.ClientID)
	case ref.ExchangeID != "":
		id, err := strconv.ParseInt(ref.ExchangeID, 10, 64)
		if err != nil {
			return exchange.Order{}, fmt.Errorf("get order: bad exchange id %q: %w", ref.ExchangeID, err)
		}
		svc.OrderID(id)
	default:
		return exchange.Order{}, fmt.Errorf("get order: empty order reference")
	}
	res, err := svc.Do(ctx)
	if err != nil {
		if isGoneCode(err) {
			return exchange.Order{}, fmt.Errorf("%w: %v", exchange.ErrOrderNotFound, err)
		}
		return exchange.Order{}, fmt.Errorf("get order: %w", err)
	}
	return convertOrder(res), nil
}

func (g *Gateway) ListOpenOrders(ctx context.Context) ([]exchange.Order, error) {
	res, err := g.client.NewListOpenOrdersService().Symbol(g.cfg.Symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	out := make([]exchange.Order, 0, len(res))
	for _, o := range res {
		if o == nil {
			continue
		}
		out = append(out, convertOrder(o))
	}
	return out, nil
}

func (g *Gateway) BestBidAsk(ctx context.Context) (exchange.BookTop, error) {
	res, err := g.client.NewListBookTickersService().Symbol(g.cfg.Symbol).Do(ctx)
	if err != nil {
		return exchange.BookTop{}, fmt.Errorf("book ticker: %w", err)
	}
	if len(res) == 0 || res[0] == nil {
		return exchange.BookTop{}, fmt.Errorf("book ticker: empty response for %s", g.cfg.Symbol)
	}
	return exchange.BookTop{
		Bid: parseFloat(res[0].BidPrice),
		Ask: parseFloat(res[0].AskPrice),
	}, nil
}

// SymbolFilters fetches exchange info once and caches it; trading rules only
// change with exchange maintenance windows.
func (g *Gateway) SymbolFilters(ctx context.Context) (filters.SymbolFilters, error) {
	g.filterMu.Lock()
	defer g.filterMu.Unlock()
	if g.filterOnce {
		return g.filterSet, nil
	}
	info, err := g.client.NewExchangeInfoService().Symbols(g.cfg.Symbol).Do(ctx)
	if err != nil {
		return filters.SymbolFilters{}, fmt.Errorf("exchange info: %w", err)
	}
	for _, sym := range info.Symbols {
		if sym.Symbol != g.cfg.Symbol {
			continue
		}
		g.filterSet = parseSymbolFilters(sym.Symbol, sym.Filters)
		g.filterOnce = true
		return g.filterSet, nil
	}
	return filters.SymbolFilters{}, fmt.Errorf("exchange info: symbol %s not found", g.cfg.Symbol)
}

// parseSymbolFilters reads the raw filter maps rather than the SDK helper
// structs so both the legacy MIN_NOTIONAL and the newer NOTIONAL filter
// names are handled.
func parseSymbolFilters(symbol string, raw []map[string]interface{}) filters.SymbolFilters {
	out := filters.SymbolFilters{Symbol: symbol}
	for _, f := range raw {
		switch f["filterType"] {
		case "PRICE_FILTER":
			out.TickSize = mapFloat(f, "tickSize")
			out.MinPrice = mapFloat(f, "minPrice")
			out.MaxPrice = mapFloat(f, "maxPrice")
		case "LOT_SIZE":
			out.StepSize = mapFloat(f, "stepSize")
			out.MinQty = mapFloat(f, "minQty")
			out.MaxQty = mapFloat(f, "maxQty")
		case "MIN_NOTIONAL", "NOTIONAL":
			out.MinNotional = mapFloat(f, "minNotional")
		}
	}
	return out
}

func mapFloat(m map[string]interface{}, key string) float64 {
	s, ok := m[key].(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func convertOrder(o *binance.Order) exchange.Order {
	return exchange.Order{
		Symbol:      o.Symbol,
		Side:        ledger.Side(o.Side),
		Price:       parseFloat(o.Price),
		Quantity:    parseFloat(o.OrigQuantity),
		ExecutedQty: parseFloat(o.ExecutedQuantity),
		ClientID:    o.ClientOrderID,
		ExchangeID:  strconv.FormatInt(o.OrderID, 10),
		Status:      mapStatus(o.Status),
		CreatedAt:   time.UnixMilli(o.Time),
		UpdatedAt:   time.UnixMilli(o.UpdateTime),
	}
}

func mapStatus(s binance.OrderStatusType) ledger.Status {
	switch s {
	case binance.OrderStatusTypeNew:
		return ledger.StatusNew
	case binance.OrderStatusTypePartiallyFilled:
		return ledger.StatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return ledger.StatusFilled
	case binance.OrderStatusTypeCanceled:
		return ledger.StatusCanceled
	case binance.OrderStatusTypeExpired:
		return ledger.StatusExpired
	case binance.OrderStatusTypeRejected:
		return ledger.StatusRejected
	case binance.OrderStatusTypePendingCancel:
		// Cancel in flight: still on book, keep tracking until terminal.
		return ledger.StatusNew
	default:
		return ledger.StatusUnknown
	}
}

func isGoneCode(err error) bool {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeUnknownOrder || apiErr.Code == codeOrderNotExist
}

// formatDecimal renders a float the way the REST API expects, without
// trailing zeros or exponent notation.
func formatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
