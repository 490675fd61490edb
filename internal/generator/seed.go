package generator

// Seed identifies one generated document under a fixed Config.
type Seed uint64

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// DeriveSeed mixes parts into base. The result depends on the order of parts.
func DeriveSeed(base Seed, parts ...uint64) Seed {
	s := uint64(base)
	for _, p := range parts {
		s = splitmix64(s ^ splitmix64(p))
	}
	return Seed(s)
}

// Mix scrambles x into a well-distributed seed.
func Mix(x uint64) Seed {
	return Seed(splitmix64(x))
}
