package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/kasir-kopi/internal/pricing"
	"github.com/noah-isme/kasir-kopi/internal/sales"
)

const dateLayout = "2006-01-02"

// SalesSource defines the sale records required for analytics operations.
type SalesSource interface {
	Between(ctx context.Context, from, to time.Time) ([]sales.Transaction, error)
}

// ProductSales is the contribution of one product to a day.
type ProductSales struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	Revenue   pricing.Money `json:"revenue"`
}

// DailySummary is the dashboard view of one local calendar day.
type DailySummary struct {
	Date             string         `json:"date"`
	Revenue          pricing.Money  `json:"revenue"`
	TransactionCount int            `json:"transactionCount"`
	ItemsSold        int            `json:"itemsSold"`
	AverageTicket    pricing.Money  `json:"averageTicket"`
	TopProducts      []ProductSales `json:"topProducts"`
}

// Service provides cached daily aggregates over sale records.
type Service struct {
	Sales        SalesSource
	R            *redis.Client
	TTL          time.Duration
	Location     *time.Location
	TopN         int
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// ParseDay reads a YYYY-MM-DD date in the service location.
func (s *Service) ParseDay(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, s.location())
}

// Daily summarizes the local calendar day containing day.
func (s *Service) Daily(ctx context.Context, day time.Time) (DailySummary, error) {
	if s == nil || s.Sales == nil {
		return DailySummary{}, fmt.Errorf("analytics service not configured")
	}
	from, to := sales.DayRange(day, s.location())
	key := cacheKey("an", "daily", from.Format(dateLayout))
	var cached DailySummary
	if s.load(ctx, key, &cached) {
		return cached, nil
	}
	txs, err := s.Sales.Between(ctx, from, to)
	if err != nil {
		return DailySummary{}, err
	}
	summary := Summarize(from.Format(dateLayout), txs, s.TopN)
	s.store(ctx, key, summary)
	return summary, nil
}

// SalesRange returns one summary per day for the last days days, oldest first.
func (s *Service) SalesRange(ctx context.Context, days int) ([]DailySummary, error) {
	if days <= 0 {
		days = s.DefaultRange
	}
	if days <= 0 {
		days = 7
	}
	today := s.now().In(s.location())
	out := make([]DailySummary, 0, days)
	for i := days - 1; i >= 0; i-- {
		summary, err := s.Daily(ctx, today.AddDate(0, 0, -i))
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// Summarize aggregates txs. topN bounds the product ranking, 5 when unset.
func Summarize(date string, txs []sales.Transaction, topN int) DailySummary {
	if topN <= 0 {
		topN = 5
	}
	summary := DailySummary{Date: date, TransactionCount: len(txs)}
	byProduct := make(map[string]*ProductSales)
	for _, trx := range txs {
		summary.Revenue += trx.TotalAmount
		for _, item := range trx.Items {
			summary.ItemsSold += item.Quantity
			ps, ok := byProduct[item.Product.ID]
			if !ok {
				ps = &ProductSales{ProductID: item.Product.ID, Name: item.Product.Name}
				byProduct[item.Product.ID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue += item.TotalPrice
		}
	}
	if summary.TransactionCount > 0 {
		summary.AverageTicket = summary.Revenue / pricing.Money(summary.TransactionCount)
	}
	top := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		top = append(top, *ps)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Quantity != top[j].Quantity {
			return top[i].Quantity > top[j].Quantity
		}
		if top[i].Revenue != top[j].Revenue {
			return top[i].Revenue > top[j].Revenue
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > topN {
		top = top[:topN]
	}
	summary.TopProducts = top
	return summary
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
