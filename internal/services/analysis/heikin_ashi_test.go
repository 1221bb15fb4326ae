package analysis

import (
	"errors"
	"math"
	"testing"

	"PulseScan/internal/domain/models"
)

func TestHeikinAshiRejectsShortSeries(t *testing.T) {
	_, err := HeikinAshi(candlesFromDeltas(100, []float64{1}))
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestHeikinAshiFirstCandle(t *testing.T) {
	in := []models.Candle{
		{Open: 10, High: 14, Low: 8, Close: 12},
		{Open: 12, High: 13, Low: 11, Close: 12},
	}
	ha, err := HeikinAshi(in)
	if err != nil {
		t.Fatalf("HeikinAshi: %v", err)
	}
	if ha[0].Open != 11 || ha[0].Close != 11 || ha[0].High != 14 || ha[0].Low != 8 {
		t.Fatalf("first candle = %+v", ha[0])
	}
	// open = (11+11)/2, close = (12+13+11+12)/4
	if ha[1].Open != 11 || ha[1].Close != 12 || ha[1].High != 13 || ha[1].Low != 11 {
		t.Fatalf("second candle = %+v", ha[1])
	}
}

func TestHeikinAshiInvariants(t *testing.T) {
	deltas := make([]float64, 200)
	for i := range deltas {
		deltas[i] = 30 * math.Sin(float64(i)/7)
	}
	in := candlesFromDeltas(1000, deltas)
	ha, err := HeikinAshi(in)
	if err != nil {
		t.Fatalf("HeikinAshi: %v", err)
	}
	if len(ha) != len(in) {
		t.Fatalf("len = %d, want %d", len(ha), len(in))
	}
	for i, c := range ha {
		hi := math.Max(c.Open, c.Close)
		lo := math.Min(c.Open, c.Close)
		if c.High < hi || lo < c.Low {
			t.Fatalf("candle %d out of order: %+v", i, c)
		}
	}
}
