package stream

// Watcher turns consecutive sale snapshots into notifications. It holds the
// last observed status per sale id; the first snapshot only primes that
// state and never notifies.
type Watcher struct {
	known  map[int64]string
	primed bool
}

// NewWatcher constructs an unprimed Watcher.
func NewWatcher() *Watcher {
	return &Watcher{known: make(map[int64]string)}
}

// ApplySnapshot diffs a full snapshot against the previously observed one.
//
//   - an unseen sale id yields NotificationNewSale
//   - a known sale whose status became in_progress yields
//     NotificationDeliveryStarted
//   - sale ids absent from the snapshot are forgotten silently
//   - the very first snapshot primes state and yields nothing
func (w *Watcher) ApplySnapshot(sales []SaleSummary) []Notification {
	next := make(map[int64]string, len(sales))
	var out []Notification

	for _, sale := range sales {
		next[sale.ID] = sale.Status
		if !w.primed {
			continue
		}
		prev, seen := w.known[sale.ID]
		switch {
		case !seen:
			out = append(out, Notification{
				Kind:     NotificationNewSale,
				SaleID:   sale.ID,
				SaleDate: sale.SaleDate,
			})
			// A sale that arrives already in_progress still announces the
			// start of its delivery.
			if sale.Status == "in_progress" {
				out = append(out, Notification{
					Kind:     NotificationDeliveryStarted,
					SaleID:   sale.ID,
					SaleDate: sale.SaleDate,
				})
			}
		case prev != sale.Status && sale.Status == "in_progress":
			out = append(out, Notification{
				Kind:     NotificationDeliveryStarted,
				SaleID:   sale.ID,
				SaleDate: sale.SaleDate,
			})
		}
	}

	w.known = next
	w.primed = true
	return out
}

// Primed reports whether the watcher has observed its first snapshot.
func (w *Watcher) Primed() bool {
	return w.primed
}
