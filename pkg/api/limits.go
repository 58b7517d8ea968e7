package api

type Limits struct {
	// BulkLimits stands for a number of posts a user is allowed to request at once.
	BulkLimits int
	// RequestsPerSecond bounds the request rate of the whole API, zero disables the limit.
	RequestsPerSecond uint64
}

func (lim *Limits) isBulkQuantityAllowed(quantity int) bool {
	if lim.BulkLimits <= 0 {
		return true
	}
	return quantity <= lim.BulkLimits
}
