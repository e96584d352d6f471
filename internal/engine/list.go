package engine

// Overview summarizes every advanced order the engine currently holds,
// for API listings and diagnostics.
type Overview struct {
	OCO          []*OCOOrder          `json:"oco"`
	TrailingStop []*TrailingStopOrder `json:"trailing_stop"`
	Iceberg      []*IcebergOrder      `json:"iceberg"`
	TWAP         []*TWAPOrder         `json:"twap"`
	VWAP         []*VWAPOrder         `json:"vwap"`
}

// List returns all advanced orders grouped by kind. Entries are deep
// copies taken under the engine lock, safe to marshal while the
// pollers keep ticking.
func (e *Engine) List() Overview {
	e.mu.Lock()
	defer e.mu.Unlock()
	var o Overview
	for _, v := range e.oco {
		o.OCO = append(o.OCO, v.snapshot())
	}
	for _, v := range e.trailing {
		o.TrailingStop = append(o.TrailingStop, v.snapshot())
	}
	for _, v := range e.iceberg {
		o.Iceberg = append(o.Iceberg, v.snapshot())
	}
	for _, v := range e.twap {
		o.TWAP = append(o.TWAP, v.snapshot())
	}
	for _, v := range e.vwap {
		o.VWAP = append(o.VWAP, v.snapshot())
	}
	return o
}
