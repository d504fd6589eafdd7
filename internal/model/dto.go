package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Envelope is the {data}/{error} wrapper every control API response uses.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type StatusSnapshot struct {
	Version     string         `json:"version"`
	Uptime      float64        `json:"uptime"`
	ActiveCores map[string]any `json:"active_cores"`
	Timestamp   string         `json:"timestamp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        Role   `json:"role"`
	UserID      int64  `json:"user_id"`
	ExpiresAt   string `json:"expires_at"`
}

type PortfolioPosition struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

type PortfolioSnapshot struct {
	RealizedPnL   decimal.Decimal     `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal     `json:"unrealized_pnl"`
	Positions     []PortfolioPosition `json:"positions"`
	EquityUSD     decimal.Decimal     `json:"equity_usd"`
}

type BalanceEntry struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

type BalancesResponse struct {
	Balances []BalanceEntry `json:"balances"`
}

type PortfolioAggregate struct {
	EquityTotalUSD    decimal.Decimal            `json:"equity_total_usd"`
	TradableEquityUSD decimal.Decimal            `json:"tradable_equity_usd"`
	CapPct            float64                    `json:"cap_pct"`
	Reserves          map[string]decimal.Decimal `json:"reserves,omitempty"`
	Positions         []PortfolioPosition        `json:"positions"`
	Balances          []BalanceEntry             `json:"balances"`
	RealizedPnL       decimal.Decimal            `json:"realized_pnl"`
	UnrealizedPnL     decimal.Decimal            `json:"unrealized_pnl"`
	Timestamp         string                     `json:"timestamp"`
}

type ArbitrageOpportunities struct {
	Opportunities []map[string]any `json:"opportunities"`
}

type ActivityComponent struct {
	Status   string   `json:"status"`
	LastTick *float64 `json:"last_tick,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

type ActivityItem struct {
	Ts      string `json:"ts"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

type ActivityResponse struct {
	Components  map[string]ActivityComponent `json:"components"`
	LastActions []ActivityItem               `json:"last_actions"`
	Warnings    []string                     `json:"warnings"`
}

type SignalFeedItem struct {
	Ts         string  `json:"ts"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
	Rationale  string  `json:"rationale,omitempty"`
	Source     string  `json:"source"`
}

type SignalsFeed struct {
	Items  []SignalFeedItem `json:"items"`
	Cursor *string          `json:"cursor,omitempty"`
}

type SpotRiskConfig struct {
	MaxPositions          *int     `json:"max_positions,omitempty"`
	MaxTradePct           *float64 `json:"max_trade_pct,omitempty"`
	RiskPerTradePct       *float64 `json:"risk_per_trade_pct,omitempty"`
	MaxSymbolExposurePct  *float64 `json:"max_symbol_exposure_pct,omitempty"`
	TakeProfitPctDefault  *float64 `json:"tp_pct_default,omitempty"`
	StopLossPctDefault    *float64 `json:"sl_pct_default,omitempty"`
}

type StrategyWeightsRequest struct {
	Weights map[string]float64 `json:"weights"`
	Enabled *bool              `json:"enabled,omitempty"`
}

// OpsState is the mutable system-state document. Only the fields the
// console reads are typed; operator-specific sub-documents stay raw.
type OpsState struct {
	AutoMode        bool            `json:"auto_mode"`
	GlobalStop      bool            `json:"global_stop"`
	TradingOn       *bool           `json:"trading_on,omitempty"`
	AgentOn         *bool           `json:"agent_on,omitempty"`
	ArbOn           *bool           `json:"arb_on,omitempty"`
	SchedOn         *bool           `json:"sched_on,omitempty"`
	ManualOverride  *bool           `json:"manual_override,omitempty"`
	ExecMode        string          `json:"exec_mode,omitempty"`
	PortfolioEquity decimal.Decimal `json:"portfolio_equity,omitempty"`
	Scalp           json.RawMessage `json:"scalp,omitempty"`
	Arb             json.RawMessage `json:"arb,omitempty"`
	Spot            json.RawMessage `json:"spot,omitempty"`
	Reserves        json.RawMessage `json:"reserves,omitempty"`
	Ops             json.RawMessage `json:"ops,omitempty"`
}

type CapitalSnapshot struct {
	CapPct     float64            `json:"cap_pct"`
	Equity     decimal.Decimal    `json:"equity"`
	Allocation map[string]float64 `json:"allocation"`
	State      OpsState           `json:"state"`
	Reserves   json.RawMessage    `json:"reserves,omitempty"`
}

type LogEntry struct {
	Ts      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type LogsResponse struct {
	Items []LogEntry `json:"items"`
}

type TradeRequest struct {
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"`
	Qty    decimal.Decimal `json:"qty"`
}

type FuturesTradeRequest struct {
	TradeRequest
	Leverage *int   `json:"leverage,omitempty"`
	Type     string `json:"type,omitempty"`
}

type SignalPayload struct {
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"`
	Qty    decimal.Decimal `json:"qty"`
}

type SignalsEnvelope struct {
	Signals []SignalPayload    `json:"signals"`
	Enable  map[string]float64 `json:"enable,omitempty"`
}

type FeatureFlag struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt string          `json:"updated_at"`
	UpdatedBy *int64          `json:"updated_by,omitempty"`
}

type LimitEntry struct {
	Scope     string          `json:"scope"`
	Subject   *string         `json:"subject,omitempty"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt string          `json:"updated_at"`
	UpdatedBy *int64          `json:"updated_by,omitempty"`
}

// AuditEvent is a server-side audit row from /admin/audit, distinct from
// the console's local action ring.
type AuditEvent struct {
	ID          string          `json:"id"`
	Ts          time.Time       `json:"ts"`
	ActorUserID *int64          `json:"actor_user_id,omitempty"`
	ActorRole   *string         `json:"actor_role,omitempty"`
	Action      string          `json:"action"`
	Target      *string         `json:"target,omitempty"`
	Result      string          `json:"result"`
	IP          *string         `json:"ip,omitempty"`
	UserAgent   *string         `json:"user_agent,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type AuditQuery struct {
	Limit  int
	Actor  string
	Action string
	Result string
}

type ItemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

type UserCreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type UserUpdateRequest struct {
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ResearchResponse struct {
	Results []json.RawMessage `json:"results"`
}
