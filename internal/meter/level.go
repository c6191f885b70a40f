package meter

// TankHeightCM is the distance from the sensor mount down to the tank
// floor. A physical constant of the installation, deliberately not
// user-configurable; capacity in liters is configuration and feeds the
// volume readout only, never the percentage formula.
const TankHeightCM = 150.0

// LevelPercent converts an averaged ranging distance (cm from the sensor
// at the top of the tank down to the water surface) into a fill
// percentage. A zero distance means the ranger saw no echo; that and any
// distance at or beyond the tank height both read as empty. Over-reporting
// fullness is the hazardous failure, so sensor trouble degrades downward.
func LevelPercent(distanceCM float64) float64 {
	// Negated so NaN lands in the empty branch too.
	if !(distanceCM > 0 && distanceCM < TankHeightCM) {
		return 0
	}
	pct := 100.0 * (1.0 - distanceCM/TankHeightCM)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
