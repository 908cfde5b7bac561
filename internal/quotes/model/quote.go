package model

import (
	"bytes"
	"fmt"
	"math"

	"github.com/segmentio/encoding/json"
	"quotebridge.com/pkg/xerr"
)

// Quote 一个品种某一时刻的报价快照（字段与终端 tick 一一对应）
type Quote struct {
	Time       int64   `json:"time"` // 秒
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Last       float64 `json:"last"`   // 没有成交时为 0
	Volume     int64   `json:"volume"` // 没有成交时为 0
	TimeMsc    int64   `json:"time_msc"`
	Flags      int64   `json:"flags"` // 终端定义的 tick flags，不解析
	VolumeReal float64 `json:"volume_real"`
}

// RawTick 终端返回的原始 tick，还没校验
type RawTick map[string]any

type fieldKind uint8

const (
	kindInt fieldKind = iota + 1
	kindFloat
)

// quoteFields 与 Quote 的 json tag 顺序一致
var quoteFields = []struct {
	name string
	kind fieldKind
}{
	{"time", kindInt},
	{"bid", kindFloat},
	{"ask", kindFloat},
	{"last", kindFloat},
	{"volume", kindInt},
	{"time_msc", kindInt},
	{"flags", kindInt},
	{"volume_real", kindFloat},
}

// NewQuote 校验并构造 Quote：八个字段必须齐全且类型正确，否则返回 *xerr.ValidationError。
// 多余的 key 忽略。
func NewQuote(raw RawTick) (Quote, error) {
	if raw == nil {
		return Quote{}, &xerr.ValidationError{Field: "*", Reason: "is nil"}
	}
	var ints [4]int64
	var floats [4]float64
	ii, fi := 0, 0
	for _, f := range quoteFields {
		v, ok := raw[f.name]
		if !ok {
			return Quote{}, &xerr.ValidationError{Field: f.name, Reason: "is missing"}
		}
		switch f.kind {
		case kindInt:
			n, err := asInt(v)
			if err != nil {
				return Quote{}, &xerr.ValidationError{Field: f.name, Reason: err.Error()}
			}
			ints[ii] = n
			ii++
		case kindFloat:
			x, err := asFloat(v)
			if err != nil {
				return Quote{}, &xerr.ValidationError{Field: f.name, Reason: err.Error()}
			}
			floats[fi] = x
			fi++
		}
	}
	return Quote{
		Time:       ints[0],
		Bid:        floats[0],
		Ask:        floats[1],
		Last:       floats[2],
		Volume:     ints[1],
		TimeMsc:    ints[2],
		Flags:      ints[3],
		VolumeReal: floats[3],
	}, nil
}

// Raw 反向转换，主要给模拟终端和测试用
func (q Quote) Raw() RawTick {
	return RawTick{
		"time":        q.Time,
		"bid":         q.Bid,
		"ask":         q.Ask,
		"last":        q.Last,
		"volume":      q.Volume,
		"time_msc":    q.TimeMsc,
		"flags":       q.Flags,
		"volume_real": q.VolumeReal,
	}
}

// Encode pub/sub 线上格式：只包含八个字段的 JSON
func Encode(q Quote) ([]byte, error) {
	for _, x := range []float64{q.Bid, q.Ask, q.Last, q.VolumeReal} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &xerr.ValidationError{Field: "*", Reason: "is not a finite number"}
		}
	}
	return json.Marshal(q)
}

// Decode Encode 的严格逆操作：多字段、少字段、类型不对都报错
func Decode(b []byte) (Quote, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw RawTick
	if err := dec.Decode(&raw); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if len(raw) != len(quoteFields) {
		for k := range raw {
			if !isQuoteField(k) {
				return Quote{}, &xerr.ValidationError{Field: k, Reason: "is not a quote field"}
			}
		}
	}
	return NewQuote(raw)
}

func isQuoteField(name string) bool {
	for _, f := range quoteFields {
		if f.name == name {
			return true
		}
	}
	return false
}
