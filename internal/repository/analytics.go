package repository

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/njoerd114/saleslive/internal/insights"
	"github.com/njoerd114/saleslive/internal/model"
	engine "github.com/njoerd114/saleslive/internal/sync"
)

// defaultTopProducts is the result size of GetTopSellingProducts when the
// caller passes no limit.
const defaultTopProducts = 5

// DaySales aggregates one calendar day of a shop's bills.
type DaySales struct {
	// Date is the day in YYYY-MM-DD form.
	Date string `json:"date"`
	// Label is a short display form such as "Mon, Jan 2".
	Label string `json:"label"`
	// Revenue sums the totals of PAID bills only.
	Revenue float64 `json:"revenue"`
	// Count includes bills of every payment status.
	Count int `json:"count"`
}

// ProductSales aggregates bill lines by product name.
type ProductSales struct {
	Name    string  `json:"name"`
	Qty     int     `json:"qty"`
	Revenue float64 `json:"revenue"`
}

// DashboardKPIs is the headline summary for a shop.
type DashboardKPIs struct {
	TodaySales  float64 `json:"todaySales"`
	BillsToday  int     `json:"billsToday"`
	PendingSync int     `json:"pendingSync"`
}

func (r *Repository) startOfDay(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

// endOfDay returns the last millisecond of the day starting at start.
func endOfDay(start time.Time) time.Time {
	return start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// GetTodayBills returns the shop's bills created since local midnight,
// newest first.
func (r *Repository) GetTodayBills(ctx context.Context, shopID string) ([]*model.Bill, error) {
	if _, err := r.sync.RestoreBills(ctx, engine.FieldShopID, shopID); err != nil {
		return nil, err
	}
	start := r.startOfDay(r.now())
	bills, err := r.store.BillsByShopBetween(ctx, shopID, start, endOfDay(start))
	if err != nil {
		return nil, err
	}
	return orEmpty(bills), nil
}

// GetBillsLast7Days returns seven day buckets ending today, oldest first.
// Days without bills are reported with zero revenue and count.
func (r *Repository) GetBillsLast7Days(ctx context.Context, shopID string) ([]DaySales, error) {
	if _, err := r.sync.RestoreBills(ctx, engine.FieldShopID, shopID); err != nil {
		return nil, err
	}
	today := r.startOfDay(r.now())
	first := today.AddDate(0, 0, -6)
	bills, err := r.store.BillsByShopBetween(ctx, shopID, first, endOfDay(today))
	if err != nil {
		return nil, err
	}

	revenue := make([]decimal.Decimal, 7)
	days := make([]DaySales, 7)
	for i := range days {
		d := first.AddDate(0, 0, i)
		days[i] = DaySales{Date: d.Format(time.DateOnly), Label: d.Format("Mon, Jan 2")}
		revenue[i] = decimal.Zero
	}

	for _, b := range bills {
		i := dayIndex(first, r.startOfDay(b.CreatedAt))
		if i < 0 || i >= len(days) {
			continue
		}
		days[i].Count++
		if b.PaymentStatus == model.PaymentPaid {
			revenue[i] = revenue[i].Add(decimal.NewFromFloat(b.TotalAmount))
		}
	}
	for i := range days {
		days[i].Revenue = revenue[i].InexactFloat64()
	}
	return days, nil
}

// dayIndex counts calendar days from first to day. Both must be local
// midnights; the date arithmetic keeps DST transitions out of the result.
func dayIndex(first, day time.Time) int {
	for i := range 7 {
		if first.AddDate(0, 0, i).Equal(day) {
			return i
		}
	}
	return -1
}

// GetTopSellingProducts ranks the shop's bill lines by product name and
// revenue, highest first. A limit of zero or less means 5.
func (r *Repository) GetTopSellingProducts(ctx context.Context, shopID string, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = defaultTopProducts
	}
	if _, err := r.sync.RestoreBills(ctx, engine.FieldShopID, shopID); err != nil {
		return nil, err
	}
	bills, err := r.store.BillsByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	type agg struct {
		qty     int
		revenue decimal.Decimal
	}
	byName := make(map[string]*agg)
	for _, b := range bills {
		for _, it := range b.Items {
			a, ok := byName[it.Name]
			if !ok {
				a = &agg{revenue: decimal.Zero}
				byName[it.Name] = a
			}
			a.qty += it.Qty
			a.revenue = a.revenue.Add(decimal.NewFromFloat(it.LineTotal))
		}
	}

	out := make([]ProductSales, 0, len(byName))
	for name, a := range byName {
		out = append(out, ProductSales{Name: name, Qty: a.qty, Revenue: a.revenue.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetDashboardKPIs summarises today's takings and the sync backlog.
func (r *Repository) GetDashboardKPIs(ctx context.Context, shopID string) (*DashboardKPIs, error) {
	today, err := r.GetTodayBills(ctx, shopID)
	if err != nil {
		return nil, err
	}
	sales := decimal.Zero
	for _, b := range today {
		if b.PaymentStatus == model.PaymentPaid {
			sales = sales.Add(decimal.NewFromFloat(b.TotalAmount))
		}
	}
	pending, err := r.store.CountPending(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return &DashboardKPIs{
		TodaySales:  sales.InexactFloat64(),
		BillsToday:  len(today),
		PendingSync: pending,
	}, nil
}

// SummarizeSales writes a short summary of the shop's seven-day revenue
// (kind "revenue") or top products (kind "products") chart.
func (r *Repository) SummarizeSales(ctx context.Context, shopID string, kind insights.Kind) (*insights.Summary, error) {
	var data any
	switch kind {
	case insights.KindRevenue:
		days, err := r.GetBillsLast7Days(ctx, shopID)
		if err != nil {
			return nil, err
		}
		data = days
	case insights.KindProducts:
		top, err := r.GetTopSellingProducts(ctx, shopID, 0)
		if err != nil {
			return nil, err
		}
		data = top
	default:
		return nil, &model.ValidationError{Field: "kind", Reason: `must be "revenue" or "products"`}
	}
	return r.insights.Summarize(ctx, kind, data)
}
