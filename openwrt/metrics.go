package openwrt

// LoadScale is the kernel's fixed-point factor for load averages (1 << 16).
const LoadScale = 65536

// MemoryPercent is floor((total-available)/total*100). A zero total, or an
// available figure at or above total, yields 0.
func MemoryPercent(total, available uint64) int {
	if total == 0 || available >= total {
		return 0
	}
	return int((total - available) * 100 / total)
}

// CPULoad converts the raw one-minute load average to a float.
func CPULoad(load [3]float64) float64 {
	return load[0] / LoadScale
}
