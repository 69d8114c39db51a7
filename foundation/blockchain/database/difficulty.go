package database

// MinDifficulty is the floor for the difficulty target. Zero would make
// every hash a solution.
const MinDifficulty = 1

// MaxDifficulty is the ceiling for the difficulty target: the number of
// hex characters in the hash. Anything past it is unsatisfiable.
const MaxDifficulty = 64

// retargetRatio bounds how far off a period must be before the
// difficulty moves. Each additional zero hex character multiplies the
// expected work by 16, so the difficulty moves one step at a time and
// only when the period is off by this ratio.
const retargetRatio = 4

// Retarget computes the difficulty for the next adjustment period by
// comparing the actual elapsed time of the closing period against the
// target interval.
func Retarget(current uint, periodFirst BlockHeader, periodLast BlockHeader, adjustEvery uint64, intervalSeconds uint64) uint {
	if adjustEvery == 0 || intervalSeconds == 0 {
		return current
	}

	actual := periodLast.TimeStamp - periodFirst.TimeStamp
	target := adjustEvery * intervalSeconds

	switch {
	case actual*retargetRatio < target && current < MaxDifficulty:
		return current + 1

	case actual > target*retargetRatio && current > MinDifficulty:
		return current - 1
	}

	return current
}
