package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/cache"
	"kombatmoto/backend/internal/clock"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/money"
)

const topProductsLimit = 5

// Dashboard returns the shop's headline numbers. Revenue and average tickets
// cover the current calendar month; top products cover all sales.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	today := clock.Today(s.clock)
	key := cache.DashboardKey(today)

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("dashboard cache read failed")
	} else if ok {
		return *cached, nil
	}

	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{})
	if err != nil {
		return domain.DashboardStats{}, err
	}
	delinquency, openReceivables, err := s.ledger.Delinquency(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	motos, err := s.repo.ListMotorcycles(ctx, nil)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	products, err := s.repo.ListProducts(ctx, "")
	if err != nil {
		return domain.DashboardStats{}, err
	}

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	stats := domain.DashboardStats{
		Date:            today.Format(time.DateOnly),
		Revenue:         decimal.Zero,
		Delinquency:     money.RoundCents(delinquency),
		OpenReceivables: openReceivables,
		TopProducts:     topProducts(sales, topProductsLimit),
		RevisionsDue:    s.revisions.Count(motos),
	}

	var counterTotal, serviceTotal decimal.Decimal
	var counterCount, serviceCount int64
	for _, sale := range sales {
		if sale.Type == domain.SaleWorkshop && sale.Status != domain.ServiceDelivered {
			stats.OpenServiceOrders++
		}
		if sale.CreatedAt.Before(monthStart) {
			continue
		}
		stats.Revenue = stats.Revenue.Add(sale.Total)
		if sale.Type == domain.SaleWorkshop {
			serviceTotal = serviceTotal.Add(sale.Total)
			serviceCount++
		} else {
			counterTotal = counterTotal.Add(sale.Total)
			counterCount++
		}
	}
	stats.Revenue = money.RoundCents(stats.Revenue)
	stats.AverageCounterTicket = average(counterTotal, counterCount)
	stats.AverageServiceTicket = average(serviceTotal, serviceCount)

	for _, p := range products {
		if p.Stock <= p.MinStock {
			stats.LowStockProducts++
		}
	}

	if err := s.cache.Set(ctx, key, &stats, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("dashboard cache write failed")
	}
	return stats, nil
}

// MechanicCommissionReport totals commissions per mechanic for workshop
// sales since the start of period.
func (s *Service) MechanicCommissionReport(ctx context.Context, period string) (domain.CommissionReport, error) {
	p := domain.CommissionPeriod(strings.ToLower(strings.TrimSpace(period)))
	if p == "" {
		p = domain.PeriodMonth
	}

	var days int
	switch p {
	case domain.PeriodWeek:
		days = 7
	case domain.PeriodFortnight:
		days = 15
	case domain.PeriodMonth:
		days = 30
	case domain.PeriodAll:
	default:
		return domain.CommissionReport{}, domain.NewValidationError("period", "período deve ser week, fortnight, month ou all")
	}

	filter := domain.SaleFilter{Type: domain.SaleWorkshop}
	report := domain.CommissionReport{
		Period:          p,
		Mechanics:       []domain.MechanicCommission{},
		TotalServices:   decimal.Zero,
		TotalCommission: decimal.Zero,
	}
	if days > 0 {
		from := s.clock.Now().AddDate(0, 0, -days)
		filter.From = from.UTC()
		report.From = &from
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return domain.CommissionReport{}, err
	}

	byMechanic := make(map[int64]*domain.MechanicCommission)
	for _, sale := range sales {
		if sale.MechanicID == nil {
			continue
		}
		row, ok := byMechanic[*sale.MechanicID]
		if !ok {
			row = &domain.MechanicCommission{
				MechanicID:   *sale.MechanicID,
				MechanicName: sale.MechanicName,
				Total:        decimal.Zero,
				Commission:   decimal.Zero,
			}
			byMechanic[*sale.MechanicID] = row
		}
		row.Services++
		row.Total = row.Total.Add(sale.Total)
		row.Commission = row.Commission.Add(sale.Commission)
		report.TotalServices = report.TotalServices.Add(sale.Total)
		report.TotalCommission = report.TotalCommission.Add(sale.Commission)
	}

	for _, row := range byMechanic {
		report.Mechanics = append(report.Mechanics, *row)
	}
	slices.SortFunc(report.Mechanics, func(a, b domain.MechanicCommission) int {
		if c := b.Commission.Cmp(a.Commission); c != 0 {
			return c
		}
		return cmp.Compare(a.MechanicID, b.MechanicID)
	})
	report.NetShop = report.TotalServices.Sub(report.TotalCommission)
	return report, nil
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	key := cache.DashboardKey(clock.Today(s.clock))
	if err := s.cache.Del(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("dashboard cache invalidation failed")
	}
}

func topProducts(sales []domain.Sale, limit int) []domain.ProductRanking {
	totals := make(map[string]int)
	for _, sale := range sales {
		for _, item := range sale.Items {
			totals[item.Description] += item.Quantity
		}
	}
	ranking := make([]domain.ProductRanking, 0, len(totals))
	for description, qty := range totals {
		ranking = append(ranking, domain.ProductRanking{Description: description, Quantity: qty})
	}
	slices.SortFunc(ranking, func(a, b domain.ProductRanking) int {
		if a.Quantity != b.Quantity {
			return cmp.Compare(b.Quantity, a.Quantity)
		}
		return strings.Compare(a.Description, b.Description)
	})
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking
}

func average(total decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count)).Round(2)
}
