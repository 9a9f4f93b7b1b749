package util

// MetricsBucketsMilliSeconds are latency buckets from 1ms to 4s.
var MetricsBucketsMilliSeconds = []float64{
	1e-3, 2e-3, 4e-3, 16e-3, 32e-3, 64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3,
}

// MetricsBucketsMilliLongSeconds are latency buckets from 64ms to 131s, for
// network round trips.
var MetricsBucketsMilliLongSeconds = []float64{
	64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3, 8192e-3, 16384e-3, 32768e-3, 65536e-3, 131072e-3,
}
