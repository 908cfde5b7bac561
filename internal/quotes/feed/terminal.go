package feed

import (
	"context"

	"quotebridge.com/internal/quotes/model"
)

// Terminal 上游行情终端的最小能力集合。
// 实现：mt5bridge（HTTP 桥）/ simterm（模拟终端）
type Terminal interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	TerminalInfo(ctx context.Context) (TerminalInfo, error)
	// SymbolInfo ok=false 表示品种不在终端的 watch list 里
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, bool, error)
	SymbolSelect(ctx context.Context, symbol string, enable bool) (bool, error)
	// SymbolInfoTick ok=false 表示终端当前没有该品种的 tick
	SymbolInfoTick(ctx context.Context, symbol string) (model.RawTick, bool, error)
}

type TerminalInfo struct {
	Name      string `json:"name"`
	Company   string `json:"company"`
	Build     int    `json:"build"`
	Connected bool   `json:"connected"`
}

type SymbolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Digits      int    `json:"digits"`
	Visible     bool   `json:"visible"`
}
