package engine

// Engine state is only ever mutated under the engine mutex. Everything
// handed back to callers is a deep copy taken while the lock is still
// held, so readers (HTTP handlers marshalling JSON, pollers) never
// observe a transition mid-write.

func (o *OCOOrder) snapshot() *OCOOrder {
	dup := *o
	dup.Primary = o.Primary.Clone()
	dup.Secondary = o.Secondary.Clone()
	return &dup
}

func (ts *TrailingStopOrder) snapshot() *TrailingStopOrder {
	dup := *ts
	dup.Order = ts.Order.Clone()
	return &dup
}

func (ice *IcebergOrder) snapshot() *IcebergOrder {
	dup := *ice
	dup.Order = ice.Order.Clone()
	return &dup
}

func (so *scheduledOrder) snapshotInto(dst *scheduledOrder) {
	*dst = *so
	dst.Order = so.Order.Clone()
	dst.Slices = append([]Slice(nil), so.Slices...)
}

func (tw *TWAPOrder) snapshot() *TWAPOrder {
	dup := &TWAPOrder{}
	tw.scheduledOrder.snapshotInto(&dup.scheduledOrder)
	return dup
}

func (vw *VWAPOrder) snapshot() *VWAPOrder {
	dup := &VWAPOrder{}
	vw.scheduledOrder.snapshotInto(&dup.scheduledOrder)
	dup.VolumeProfile = append([]float64(nil), vw.VolumeProfile...)
	return dup
}
