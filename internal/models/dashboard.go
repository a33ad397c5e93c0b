package models

// MonthlyEarning выручка за месяц для графика.
type MonthlyEarning struct {
	Month    string  `json:"month"`
	Earnings float64 `json:"earnings"`
}

// EarningsChart график выручки за год.
type EarningsChart struct {
	Year int              `json:"year"`
	Data []MonthlyEarning `json:"data"`
}

// RecentUser пользователь в списке последних регистраций.
type RecentUser struct {
	SL int `json:"sl"`
	User
}

// TransactionStats сводка транзакций для админ-панели.
type TransactionStats struct {
	TotalEarnings      float64       `json:"totalEarnings"`
	TotalUsers         int           `json:"totalUsers"`
	TotalSubscriptions int           `json:"totalSubscriptions"`
	EarningsChart      EarningsChart `json:"earningsChart"`
	RecentUsers        []RecentUser  `json:"recentUsers"`
}

// TrendValue сравнение показателя с прошлым месяцем.
type TrendValue struct {
	Current   float64 `json:"current"`
	LastMonth float64 `json:"last_month"`
	Status    string  `json:"status"`
}

// WinRateTrend процент побед текущего и прошлого месяца.
type WinRateTrend struct {
	WinRate   float64 `json:"win_rate"`
	LastMonth float64 `json:"last_month"`
	Status    string  `json:"status"`
}

// SubscribersTrend число подписчиков и оплат прошлого месяца.
type SubscribersTrend struct {
	Total     int    `json:"total"`
	LastMonth int    `json:"last_month"`
	Status    string `json:"status"`
}

// RevenueTrend выручка текущего и прошлого месяца.
type RevenueTrend struct {
	Value     float64 `json:"value"`
	LastMonth float64 `json:"last_month"`
	Status    string  `json:"status"`
}

// DashboardInfo карточки главной страницы админ-панели.
type DashboardInfo struct {
	OverallWinRate    WinRateTrend     `json:"overall_win_rate"`
	ActivePredictions TrendValue       `json:"active_predictions"`
	TotalSubscribers  SubscribersTrend `json:"total_subscribers"`
	MonthlyRevenue    RevenueTrend     `json:"monthly_revenue"`
}

// RecordsTrend число прогнозов и созданных в прошлом месяце.
type RecordsTrend struct {
	TotalRecords int    `json:"total_records"`
	LastMonth    int    `json:"last_month"`
	Status       string `json:"status"`
}

// WinsTrend выигравшие прогнозы текущего и прошлого месяца.
type WinsTrend struct {
	TotalWin  int    `json:"total_win"`
	LastMonth int    `json:"last_month"`
	Status    string `json:"status"`
}

// PredictionSummary сводка по прогнозам в сравнении с прошлым месяцем.
type PredictionSummary struct {
	TotalRecords      RecordsTrend `json:"total_records"`
	ActivePredictions TrendValue   `json:"active_predictions"`
	TotalWin          WinsTrend    `json:"total_win"`
	OverallWinRate    WinRateTrend `json:"overall_win_rate"`
}

// PredictionCounts счётчики прогнозов за период.
type PredictionCounts struct {
	Total   int
	Win     int
	Lose    int
	Pending int
}
