package internal

import "expvar"

var (
	enqueuedTotal      = expvar.NewMap("gitaiops_enqueued_total")
	processedTotal     = expvar.NewMap("gitaiops_processed_total")
	failedTotal        = expvar.NewMap("gitaiops_failed_total")
	abandonedTotal     = expvar.NewMap("gitaiops_abandoned_total")
	queueDepth         = expvar.NewMap("gitaiops_queue_depth")
	signatureRejects   = expvar.NewInt("gitaiops_signature_rejects_total")
	normalizeRejects   = expvar.NewInt("gitaiops_normalize_rejects_total")
	queueFullRejects   = expvar.NewInt("gitaiops_queue_full_total")
	cacheHits          = expvar.NewInt("gitaiops_cache_hits_total")
	cacheMisses        = expvar.NewInt("gitaiops_cache_misses_total")
	circuitState       = expvar.NewString("gitaiops_circuit_state")
	deliveryFailures   = expvar.NewInt("gitaiops_delivery_failures_total")
	publishErrors      = expvar.NewMap("gitaiops_publish_errors_total")
	rateLimitTimeouts  = expvar.NewInt("gitaiops_rate_limit_timeouts_total")
	circuitOpenRejects = expvar.NewInt("gitaiops_circuit_open_rejects_total")
)

func IncEnqueued(kind Kind)  { enqueuedTotal.Add(string(kind), 1) }
func IncProcessed(kind Kind) { processedTotal.Add(string(kind), 1) }
func IncFailed(kind Kind)    { failedTotal.Add(string(kind), 1) }
func IncAbandoned(kind Kind) { abandonedTotal.Add(string(kind), 1) }

func SetQueueDepth(kind Kind, depth int64) {
	v := new(expvar.Int)
	v.Set(depth)
	queueDepth.Set(string(kind), v)
}

func IncSignatureReject()  { signatureRejects.Add(1) }
func IncNormalizeReject()  { normalizeRejects.Add(1) }
func IncQueueFull()        { queueFullRejects.Add(1) }
func IncCacheHit()         { cacheHits.Add(1) }
func IncCacheMiss()        { cacheMisses.Add(1) }
func IncDeliveryFailure()  { deliveryFailures.Add(1) }
func IncRateLimitTimeout() { rateLimitTimeouts.Add(1) }
func IncCircuitOpen()      { circuitOpenRejects.Add(1) }

func SetCircuitState(state string) { circuitState.Set(state) }

func IncPublishError(driver string) { publishErrors.Add(driver, 1) }

// CacheHitRate returns hits/(hits+misses), or 0 when nothing was looked up.
func CacheHitRate() float64 {
	hits := cacheHits.Value()
	total := hits + cacheMisses.Value()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func CircuitStateValue() string { return circuitState.Value() }
