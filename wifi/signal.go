package wifi

const (
	minRssi = -100
	maxRssi = -55
)

// CalculateSignalLevel buckets a raw dBm reading into numLevels levels,
// 0 being the weakest. Readings at or below -100 dBm map to 0 and readings
// at or above -55 dBm map to numLevels-1.
func CalculateSignalLevel(rssi int, numLevels int) int {
	if numLevels < 1 {
		return 0
	}

	switch {
	case rssi <= minRssi:
		return 0
	case rssi >= maxRssi:
		return numLevels - 1
	default:
		return (rssi - minRssi) * (numLevels - 1) / (maxRssi - minRssi)
	}
}

// NormalizedLevel is the 0-100 signal level used to compare access points.
func NormalizedLevel(rssi int) int {
	return CalculateSignalLevel(rssi, 100)
}
