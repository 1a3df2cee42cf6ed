package analytics

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ksred/tradejournal-api/internal/trades"
	"github.com/ksred/tradejournal-api/internal/types"
)

// Summary is the performance report over a set of trades. Result statistics
// only cover closed trades whose result is defined.
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	OpenTrades    int     `json:"open_trades"`
	ClosedTrades  int     `json:"closed_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Breakeven     int     `json:"breakeven"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
	TotalLoss     float64 `json:"total_loss"`
	NetProfitLoss float64 `json:"net_profit_loss"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	AverageResult float64 `json:"average_result"`
	ProfitFactor  float64 `json:"profit_factor"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	ResultStdDev  float64 `json:"result_std_dev"`

	ByInstrument []Breakdown `json:"by_instrument"`
	ByDirection  []Breakdown `json:"by_direction"`

	GeneratedAt time.Time `json:"generated_at"`
}

type Breakdown struct {
	Key           string  `json:"key"`
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	NetProfitLoss float64 `json:"net_profit_loss"`
}

// Summarize builds a Summary from trades.
func Summarize(list []trades.Trade, now time.Time) *Summary {
	s := &Summary{
		TotalTrades:  len(list),
		ByInstrument: []Breakdown{},
		ByDirection:  []Breakdown{},
		GeneratedAt:  now,
	}

	var results, wins, losses []float64
	byInstrument := map[string]*Breakdown{}
	byDirection := map[string]*Breakdown{}

	for _, t := range list {
		if t.Status == types.StatusOpen {
			s.OpenTrades++
			continue
		}
		s.ClosedTrades++
		if t.Result == nil {
			continue
		}

		r := *t.Result
		results = append(results, r)
		switch {
		case r > 0:
			wins = append(wins, r)
		case r < 0:
			losses = append(losses, r)
		default:
			s.Breakeven++
		}

		tally(byInstrument, t.Instrument, r)
		tally(byDirection, t.Direction.String(), r)
	}

	s.Wins = len(wins)
	s.Losses = len(losses)
	if len(results) > 0 {
		s.WinRate = percent(s.Wins, len(results))
		s.NetProfitLoss = floats.Sum(results)
		s.AverageResult = stat.Mean(results, nil)
	}
	if len(results) > 1 {
		s.ResultStdDev = stat.StdDev(results, nil)
	}
	if len(wins) > 0 {
		s.TotalProfit = floats.Sum(wins)
		s.AverageWin = stat.Mean(wins, nil)
		s.LargestWin = floats.Max(wins)
	}
	if len(losses) > 0 {
		s.TotalLoss = math.Abs(floats.Sum(losses))
		s.AverageLoss = stat.Mean(losses, nil)
		s.LargestLoss = floats.Min(losses)
	}
	if s.TotalLoss > 0 {
		s.ProfitFactor = s.TotalProfit / s.TotalLoss
	}

	s.ByInstrument = flatten(byInstrument)
	s.ByDirection = flatten(byDirection)
	return s
}

func tally(groups map[string]*Breakdown, key string, result float64) {
	b, ok := groups[key]
	if !ok {
		b = &Breakdown{Key: key}
		groups[key] = b
	}
	b.Trades++
	b.NetProfitLoss += result
	if result > 0 {
		b.Wins++
	} else if result < 0 {
		b.Losses++
	}
}

func flatten(groups map[string]*Breakdown) []Breakdown {
	out := make([]Breakdown, 0, len(groups))
	for _, b := range groups {
		b.WinRate = percent(b.Wins, b.Trades)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
