package calendar

// Available filters resolved slots, dropping any label held by an occupying booking.
// Resolver order is preserved.
func Available(resolved, occupied []string) []string {
	taken := make(map[string]struct{}, len(occupied))
	for _, s := range occupied {
		taken[s] = struct{}{}
	}
	out := make([]string, 0, len(resolved))
	for _, s := range resolved {
		if _, ok := taken[s]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ContainsSlot reports whether slot is in slots.
func ContainsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
