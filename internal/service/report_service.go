package service

import (
	"context"
	"sort"
	"strings"

	"bakery-pos/internal/models"
	"bakery-pos/internal/store"
	"bakery-pos/internal/util"

	"github.com/shopspring/decimal"
)

// ProductFilter narrows the catalog panel. Zero values match everything.
type ProductFilter struct {
	CategoryID int64
	Query      string
}

// ReportService serves read-only views over the sale log and catalog
type ReportService struct {
	repo store.Repository
}

// NewReportService creates a new report service
func NewReportService(repo store.Repository) *ReportService {
	return &ReportService{repo: repo}
}

// SalesHistory returns the sales of one user, newest first
func (rs *ReportService) SalesHistory(ctx context.Context, user string) ([]models.SaleRecord, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.SalesHistory")
	defer span.End()

	sales, err := rs.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.SaleRecord, 0, len(sales))
	for _, sale := range sales {
		if sale.User == user {
			out = append(out, sale)
		}
	}
	newestFirst(out)
	return out, nil
}

// AllSales returns the whole working set, newest first
func (rs *ReportService) AllSales(ctx context.Context) ([]models.SaleRecord, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.AllSales")
	defer span.End()

	sales, err := rs.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	newestFirst(sales)
	return sales, nil
}

// Summary aggregates the working set per payment method
func (rs *ReportService) Summary(ctx context.Context) (*models.SalesSummary, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Summary")
	defer span.End()

	sales, err := rs.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.SalesSummary{
		Total:         decimal.Zero,
		AverageTicket: decimal.Zero,
		ByMethod:      make(map[models.PaymentMethod]models.MethodSummary),
	}
	for _, sale := range sales {
		summary.Count++
		summary.Total = summary.Total.Add(sale.Total)

		m := summary.ByMethod[sale.Method]
		m.Count++
		m.Total = m.Total.Add(sale.Total)
		summary.ByMethod[sale.Method] = m
	}
	if summary.Count > 0 {
		summary.AverageTicket = summary.Total.Div(decimal.NewFromInt(int64(summary.Count))).Round(2)
	}
	return summary, nil
}

// ListProducts filters the catalog by category and a case-insensitive name search
func (rs *ReportService) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	products, err := rs.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// LowStock lists products whose stock is at or below threshold, lowest first
func (rs *ReportService) LowStock(ctx context.Context, threshold decimal.Decimal) ([]models.Product, error) {
	products, err := rs.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Product, 0)
	for _, p := range products {
		if p.CurrentStock.LessThanOrEqual(threshold) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CurrentStock.LessThan(out[j].CurrentStock)
	})
	return out, nil
}

func newestFirst(sales []models.SaleRecord) {
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].Seq > sales[j].Seq
	})
}
