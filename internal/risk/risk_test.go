package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Fixed, false},
		{"fixed", Fixed, false},
		{" Optimal ", Optimal, false},
		{"AGGRESSIVE", Aggressive, false},
		{"kelly", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, types.ErrInvalidConfiguration) {
				t.Errorf("ParseMode(%q) error = %v, want ErrInvalidConfiguration", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestPolicySize(t *testing.T) {
	balance := decimal.RequireFromString("1000")
	tests := []struct {
		mode Mode
		want string
	}{
		{Fixed, "2"},
		{Conservative, "5"},
		{Optimal, "10"},
		{Aggressive, "20"},
	}
	for _, tt := range tests {
		p := NewPolicy(tt.mode, 2, nil, DefaultBands())
		if got := p.Size(balance, NoRegime); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s size = %s, want %s", tt.mode, got, tt.want)
		}
	}
}

func TestPolicySizeNeverNonPositive(t *testing.T) {
	p := NewPolicy(Optimal, 0, nil, DefaultBands())
	if got := p.Size(decimal.Zero, NoRegime); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("size on zero balance = %s, want unit size 1", got)
	}
	if got := p.Size(decimal.NewFromInt(-50), NoRegime); !got.IsPositive() {
		t.Fatalf("size on negative balance = %s", got)
	}
}

func TestPolicyRegimeTable(t *testing.T) {
	table := map[Regime]Mode{"high_strong": Aggressive, "low_range": Conservative}
	p := NewPolicy(Optimal, 1, table, DefaultBands())
	if !p.UsesRegimes() {
		t.Fatal("expected regime table in use")
	}
	if m := p.ModeFor("high_strong"); m != Aggressive {
		t.Errorf("high_strong -> %s", m)
	}
	if m := p.ModeFor("normal_trend"); m != Optimal {
		t.Errorf("unmapped regime -> %s, want default", m)
	}
	if m := p.ModeFor(NoRegime); m != Optimal {
		t.Errorf("no regime -> %s, want default", m)
	}
}

func TestBandsClassify(t *testing.T) {
	b := DefaultBands()
	c := types.Candle{High: 1.1010, Low: 1.0990, Close: 1.1}
	strong := types.IndicatorState{EMAFast: 1.1015, SMASlow: 1.1, Ready: true}
	if got := b.Classify(c, strong); got != "high_strong" {
		t.Errorf("got %q, want high_strong", got)
	}

	quiet := types.Candle{High: 1.10002, Low: 1.09998, Close: 1.1}
	flat := types.IndicatorState{EMAFast: 1.1, SMASlow: 1.1, Ready: true}
	if got := b.Classify(quiet, flat); got != "low_range" {
		t.Errorf("got %q, want low_range", got)
	}

	if got := b.Classify(c, types.IndicatorState{}); got != NoRegime {
		t.Errorf("warm-up candle got %q", got)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  *Policy
		wantErr bool
	}{
		{"defaults", NewPolicy(Fixed, 1, nil, DefaultBands()), false},
		{"mapped table", NewPolicy(Optimal, 1, map[Regime]Mode{"high_strong": Aggressive}, DefaultBands()), false},
		{"unknown default mode", NewPolicy("BOGUS", 1, nil, DefaultBands()), true},
		{"unknown table mode", NewPolicy(Fixed, 1, map[Regime]Mode{"low_range": "KELLY"}, DefaultBands()), true},
		{"empty table mode", NewPolicy(Fixed, 1, map[Regime]Mode{"low_range": ""}, DefaultBands()), true},
		{"inverted vol bands", NewPolicy(Fixed, 1, nil, Bands{VolLow: 0.002, VolHigh: 0.001, TrendStrong: 0.001}), true},
		{"inverted trend bands", NewPolicy(Fixed, 1, nil, Bands{VolHigh: 0.001, TrendWeak: 0.001}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, types.ErrInvalidConfiguration) {
				t.Fatalf("error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
